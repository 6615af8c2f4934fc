package interceptors

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var requestValidator = newRequestValidator()

func newRequestValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	return v
}

// Validate проверяет validate теги сообщений запроса.
// Нарушения возвращаются как InvalidArgument с errdetails.BadRequest.
func Validate() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if err := validateRequest(req); err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

func validateRequest(req interface{}) error {
	if req == nil || reflect.Indirect(reflect.ValueOf(req)).Kind() != reflect.Struct {
		return nil
	}

	err := requestValidator.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return status.Errorf(codes.InvalidArgument, "validation failed: %v", err)
	}

	br := &errdetails.BadRequest{}
	for _, fe := range fieldErrors {
		br.FieldViolations = append(br.FieldViolations, &errdetails.BadRequest_FieldViolation{
			Field:       fe.Field(),
			Description: fmt.Sprintf("failed on %q", fe.Tag()),
		})
	}

	st := status.New(codes.InvalidArgument, fmt.Sprintf("validation failed: %s", fieldErrors[0].Field()))
	detailed, dErr := st.WithDetails(br)
	if dErr != nil {
		return st.Err()
	}
	return detailed.Err()
}
