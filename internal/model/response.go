package model

// Page is the envelope returned by paginated list endpoints.
type Page[T any] struct {
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
	Total    int `json:"total"`
	Items    []T `json:"items"`
}

// ErrorResponse is the body of every error response. Status is "fail" for
// client errors and "error" for server errors. Detail is only populated in
// development.
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}
