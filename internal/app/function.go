package app

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/adanyl0v/go-tasks/internal/delivery/function"
)

// StartFunction serves function invocations through the AWS Lambda
// runtime. It never returns.
func StartFunction() {
	router := function.NewRouter(globalLogger, globalTaskService)

	globalLogger.Info().Msg("starting function handler")
	lambda.Start(func(ctx context.Context, req function.Request) (function.Response, error) {
		return router.Invoke(ctx, req), nil
	})
}
