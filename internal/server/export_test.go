package server

var (
	HTTPStatus = httpStatus
	ToStatus   = toStatus
)
