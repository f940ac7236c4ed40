package llm

import (
	"context"
	"net/http"
	"time"

	"github.com/christophercallejongarcia/Test-Deeplearning/pkg/clients"
)

const maxRetries = 3

var modelRetrier = clients.NewRetrier(clients.RetryConfig{
	MaxRetries: maxRetries,
	BaseDelay:  200 * time.Millisecond,
	MaxDelay:   4 * time.Second,
})

func doWithRetry(ctx context.Context, client *http.Client, newReq func() (*http.Request, error)) (*http.Response, error) {
	return modelRetrier.Do(ctx, client, newReq)
}
