package server

import (
	"ArtistExchange/internal/errs"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type kindMapping struct {
	grpc codes.Code
	http int
}

var kindMappings = map[errs.Kind]kindMapping{
	errs.KindValidation:            {codes.InvalidArgument, http.StatusBadRequest},
	errs.KindArithmeticOverflow:    {codes.OutOfRange, http.StatusBadRequest},
	errs.KindNotFound:              {codes.NotFound, http.StatusNotFound},
	errs.KindUnknownAsset:          {codes.NotFound, http.StatusNotFound},
	errs.KindDuplicate:             {codes.AlreadyExists, http.StatusConflict},
	errs.KindAuthorization:         {codes.PermissionDenied, http.StatusForbidden},
	errs.KindInsufficientBalance:   {codes.FailedPrecondition, http.StatusUnprocessableEntity},
	errs.KindInsufficientAllowance: {codes.FailedPrecondition, http.StatusUnprocessableEntity},
	errs.KindInsufficientShares:    {codes.FailedPrecondition, http.StatusUnprocessableEntity},
	errs.KindInsufficientPayment:   {codes.FailedPrecondition, http.StatusUnprocessableEntity},
	errs.KindInsufficientLiquidity: {codes.FailedPrecondition, http.StatusUnprocessableEntity},
	errs.KindSlippageExceeded:      {codes.Aborted, http.StatusUnprocessableEntity},
	errs.KindSupplyExceeded:        {codes.FailedPrecondition, http.StatusUnprocessableEntity},
	errs.KindEmptyPool:             {codes.FailedPrecondition, http.StatusUnprocessableEntity},
}

func mappingFor(err error) kindMapping {
	if m, ok := kindMappings[errs.KindOf(err)]; ok {
		return m
	}
	return kindMapping{codes.Internal, http.StatusInternalServerError}
}

// toStatus converts a domain error into a gRPC status error. Errors that
// already carry a status pass through.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	return status.Error(mappingFor(err).grpc, err.Error())
}

// httpStatus returns the HTTP status for a domain error.
func httpStatus(err error) int {
	return mappingFor(err).http
}
