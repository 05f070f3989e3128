package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-backend/api/middleware"
	"github.com/angelmondragon/marketplace-backend/api/responses"
	"github.com/angelmondragon/marketplace-backend/api/validators"
	"github.com/angelmondragon/marketplace-backend/internal/connect"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
)

type onboarder interface {
	Onboard(ctx context.Context, input connect.OnboardInput) (*connect.OnboardResult, error)
}

type connectRequest struct {
	StoreID string `json:"storeId" validate:"required,uuid"`
	Email   string `json:"email" validate:"omitempty,email"`
}

// ConnectStore provisions the caller's store with a connected account and
// returns the onboarding link.
func ConnectStore(svc onboarder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "connect service unavailable"))
			return
		}
		ownerID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body connectRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		storeID, err := uuid.Parse(body.StoreID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid storeId"))
			return
		}

		email := strings.TrimSpace(body.Email)
		if email == "" {
			if identity, ok := middleware.IdentityFromContext(r.Context()); ok {
				email = identity.Email
			}
		}

		result, err := svc.Onboard(r.Context(), connect.OnboardInput{
			StoreID: storeID,
			OwnerID: ownerID,
			Email:   email,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
