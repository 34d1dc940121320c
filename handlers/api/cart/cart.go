package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"

	"design-studio/core"
	designsvc "design-studio/designs"
	"design-studio/document"
	"design-studio/editor"
	"design-studio/handlers/api/respond"
)

// Service is the part of designs.Service the cart handlers use.
type Service interface {
	Load(ctx context.Context, userID, id string) (*core.Design, *document.Document, error)
	AddToCart(ctx context.Context, userID string, doc *document.Document, req designsvc.CartRequest) (*core.CartItem, error)
	Cart(ctx context.Context, userID string) ([]*core.CartItem, error)
	CartItem(ctx context.Context, userID, id string) (*core.CartItem, *document.Document, error)
	RemoveFromCart(ctx context.Context, userID, id string) error
}

// addRequest snapshots either the stored design DesignID or the Document in
// the body. A body document wins when both are given.
type addRequest struct {
	DesignID    string          `json:"designId"`
	ProductType string          `json:"productType"`
	Document    json.RawMessage `json:"document"`
	Material    string          `json:"material"`
	Quantity    int             `json:"quantity"`
}

type itemResponse struct {
	*core.CartItem
	Document json.RawMessage `json:"document,omitempty"`
}

func HandleList(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := respond.UserID(w, r)
		if !ok {
			return
		}
		items, err := svc.Cart(r.Context(), userID)
		if err != nil {
			respond.Fail(w, r, err, "Failed to list cart", logrus.Fields{"userID": userID})
			return
		}
		if items == nil {
			items = []*core.CartItem{}
		}
		render.JSON(w, r, items)
	}
}

func HandleGet(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := respond.UserID(w, r)
		if !ok {
			return
		}
		id := chi.URLParam(r, "id")
		fields := logrus.Fields{"userID": userID, "id": id}

		item, doc, err := svc.CartItem(r.Context(), userID, id)
		if err != nil {
			respond.Fail(w, r, err, "Failed to load cart item", fields)
			return
		}
		raw, err := respond.EncodeDocument(doc)
		if err != nil {
			respond.Fail(w, r, err, "Failed to encode cart item", fields)
			return
		}
		meta := *item
		meta.Data = nil
		render.JSON(w, r, itemResponse{CartItem: &meta, Document: raw})
	}
}

func HandleAdd(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := respond.UserID(w, r)
		if !ok {
			return
		}
		fields := logrus.Fields{"userID": userID}

		var req addRequest
		if err := respond.DecodeJSON(r, &req); err != nil {
			respond.Fail(w, r, err, "Invalid cart body", fields)
			return
		}
		fields["designId"] = req.DesignID

		var doc *document.Document
		var err error
		switch {
		case len(req.Document) > 0:
			doc, err = respond.ParseDocument(req.Document, req.ProductType)
		case req.DesignID != "":
			_, doc, err = svc.Load(r.Context(), userID, req.DesignID)
		default:
			err = fmt.Errorf("%w: designId or document is required", respond.ErrBadRequest)
		}
		if err != nil {
			respond.Fail(w, r, err, "Failed to read design for cart", fields)
			return
		}

		item, err := svc.AddToCart(r.Context(), userID, doc, designsvc.CartRequest{
			DesignID: req.DesignID,
			Material: req.Material,
			Quantity: req.Quantity,
		})
		if err != nil {
			respond.Fail(w, r, err, "Failed to add to cart", fields)
			return
		}
		meta := *item
		meta.Data = nil
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, meta)
	}
}

func HandleDelete(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := respond.UserID(w, r)
		if !ok {
			return
		}
		id := chi.URLParam(r, "id")
		if err := svc.RemoveFromCart(r.Context(), userID, id); err != nil {
			respond.Fail(w, r, err, "Failed to remove cart item", logrus.Fields{"userID": userID, "id": id})
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type quoteRequest struct {
	ProductType string  `json:"productType"`
	Material    string  `json:"material"`
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
	Quantity    int     `json:"quantity"`
}

type quoteResponse struct {
	UnitPrice float64 `json:"unitPrice"`
	Total     float64 `json:"total"`
}

// HandleQuote prices a product without saving anything. Width and height
// default to the product preset.
func HandleQuote(pricer editor.Pricer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req quoteRequest
		if err := respond.DecodeJSON(r, &req); err != nil {
			respond.Fail(w, r, err, "Invalid quote body", nil)
			return
		}
		if p, ok := document.LookupPreset(req.ProductType); ok && req.Width == 0 && req.Height == 0 {
			req.Width, req.Height = p.Width, p.Height
		}

		unit, err := pricer.Price(r.Context(), editor.PriceRequest{
			ProductType: req.ProductType,
			Material:    req.Material,
			Width:       req.Width,
			Height:      req.Height,
			Quantity:    req.Quantity,
		})
		if err != nil {
			respond.Fail(w, r, err, "Failed to price request", logrus.Fields{"productType": req.ProductType})
			return
		}
		render.JSON(w, r, quoteResponse{
			UnitPrice: unit,
			Total:     math.Round(unit*float64(req.Quantity)*100) / 100,
		})
	}
}
