// package services implements the job initiator: the HTTP call that starts a server-side import
package services

import (
	"context"

	"github.com/desertthunder/muzictl/internal/models"
	"github.com/desertthunder/muzictl/internal/shared"
	"github.com/desertthunder/muzictl/internal/surface"
)

// Initiator starts an import job and returns its handle.
type Initiator interface {
	// Submit resets s, posts form to the provider's endpoint and parses the job handle.
	//
	// On failure s shows the failure and no subscription may be opened for the form.
	Submit(ctx context.Context, form *models.ImportForm, provider shared.ProviderConfig, s surface.Surface) (*models.JobHandle, error)
}
