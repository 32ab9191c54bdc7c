package main

type viewsResponse struct {
	Views int64 `json:"views"`
}

type errorResponse struct {
	Error string `json:"error"`
}
