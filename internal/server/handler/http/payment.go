package http

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/parseldeger/imar/internal/middleware"
	"github.com/parseldeger/imar/internal/service"
)

// Reconciler applies payment webhooks.
type Reconciler interface {
	Reconcile(ctx context.Context, res, signature string) error
}

// PaymentHandler serves the credit catalog, checkout links and the payment
// provider webhook.
type PaymentHandler struct {
	Reconciler Reconciler
	Log        *zap.Logger
}

// Packages handles GET /api/payment/packages.
func (h *PaymentHandler) Packages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, service.Packages())
}

// Create handles POST /api/payment/create?package_id=... for a signed-in
// caller and returns the checkout URL of the package.
func (h *PaymentHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok || !id.Authenticated() {
		writeDetail(w, http.StatusUnauthorized, "Giriş yapmalısınız")
		return
	}

	pkg, found := service.PackageByID(r.URL.Query().Get("package_id"))
	if !found {
		writeDetail(w, http.StatusNotFound, "Paket bulunamadı")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"payment_url": pkg.CheckoutURL,
		"package":     pkg,
	})
}

// Webhook handles POST /api/payment/webhook. The provider only understands
// a plain-text "success" or "error" body with status 200.
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	err := h.Reconciler.Reconcile(r.Context(), r.PostFormValue("res"), r.PostFormValue("hash"))

	body := "success"
	if !service.Acknowledged(err) {
		h.Log.Error("webhook rejected", zap.Error(err))
		body = "error"
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}
