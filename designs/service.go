// Package designs stores user designs and cart snapshots on top of a
// core store, rendering thumbnails and inlining assets on the way in.
package designs

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"design-studio/core"
	"design-studio/document"
	"design-studio/editor"
	"design-studio/export"
	"design-studio/tracing"
)

const (
	DefaultName        = "Untitled design"
	DefaultThumbnailPx = 320
)

var ErrInvalidQuantity = errors.New("quantity must be at least 1")

// Store is everything the service persists to.
type Store interface {
	core.DesignStore
	core.CartStore
}

type Service struct {
	store       Store
	pricer      editor.Pricer
	export      export.Options
	cartLimit   int
	thumbnailPx int
}

type Option func(*Service)

func WithPricer(p editor.Pricer) Option { return func(s *Service) { s.pricer = p } }
func WithExportOptions(o export.Options) Option { return func(s *Service) { s.export = o } }
func WithCartLimit(n int) Option { return func(s *Service) { s.cartLimit = n } }
func WithThumbnailSize(px int) Option { return func(s *Service) { s.thumbnailPx = px } }

func NewService(store Store, opts ...Option) *Service {
	s := &Service{store: store, cartLimit: core.DefaultCartLimit, thumbnailPx: DefaultThumbnailPx}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// documentOptions are the decode defaults for a product type.
func documentOptions(productType string) []document.Option {
	if p, ok := document.LookupPreset(productType); ok {
		return p.Options()
	}
	return []document.Option{document.WithProductType(productType)}
}

func (s *Service) List(ctx context.Context, userID string) ([]*core.Design, error) {
	return s.store.List(ctx, userID)
}

// Load fetches a design and decodes it. An unreadable record yields an empty
// one-page document together with an error wrapping document.ErrDecode.
func (s *Service) Load(ctx context.Context, userID, id string) (*core.Design, *document.Document, error) {
	design, err := s.store.Get(ctx, userID, id)
	if err != nil {
		return nil, nil, err
	}
	doc, err := document.DecodeOrEmpty(design.Data, documentOptions(design.ProductType)...)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"user_id":   userID,
			"design_id": id,
		}).Warn("Stored design is unreadable, returning an empty page")
	}
	return design, doc, err
}

// Save stores doc under id, or under a new id when id is empty. A blank name
// keeps the stored name. Thumbnail failures are logged and the design is
// saved without one.
func (s *Service) Save(ctx context.Context, userID, id, name string, doc *document.Document) (*core.Design, error) {
	ctx, span := tracing.StartSpan(ctx, "designs.save", tracing.String("user_id", userID))
	var err error
	defer func() { tracing.End(span, err) }()

	if id == "" {
		id = ulid.Make().String()
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultName
		if existing, getErr := s.store.Get(ctx, userID, id); getErr == nil && existing.Name != "" {
			name = existing.Name
		}
	}

	data, err := document.Encode(doc)
	if err != nil {
		return nil, err
	}
	design := &core.Design{
		ID:          id,
		UserID:      userID,
		Name:        name,
		ProductType: doc.ProductType,
		Data:        data,
	}
	design.Thumbnail = s.thumbnail(ctx, doc, logrus.WithFields(logrus.Fields{"user_id": userID, "design_id": id}))

	if err = s.store.Save(ctx, design); err != nil {
		return nil, err
	}
	return design, nil
}

func (s *Service) thumbnail(ctx context.Context, doc *document.Document, log *logrus.Entry) string {
	thumb, err := export.Thumbnail(ctx, doc, s.thumbnailPx, s.export)
	if err != nil {
		log.WithError(err).Warn("Failed to render thumbnail")
		return ""
	}
	return thumb
}

func (s *Service) Delete(ctx context.Context, userID, id string) error {
	return s.store.Delete(ctx, userID, id)
}

// CartRequest describes a design being ordered.
type CartRequest struct {
	DesignID string
	Material string
	Quantity int
}

// AddToCart stores an immutable snapshot of doc: every image inlined, a
// preview rendered, and the unit price quoted when a pricer is configured.
func (s *Service) AddToCart(ctx context.Context, userID string, doc *document.Document, req CartRequest) (*core.CartItem, error) {
	ctx, span := tracing.StartSpan(ctx, "designs.add_to_cart", tracing.String("user_id", userID))
	var err error
	defer func() { tracing.End(span, err) }()

	if req.Quantity < 1 {
		err = fmt.Errorf("%w: got %d", ErrInvalidQuantity, req.Quantity)
		return nil, err
	}
	log := logrus.WithFields(logrus.Fields{"user_id": userID, "design_id": req.DesignID})

	var price float64
	if s.pricer != nil {
		price, err = s.pricer.Price(ctx, editor.PriceRequest{
			ProductType: doc.ProductType,
			Material:    req.Material,
			Width:       doc.CanvasWidth,
			Height:      doc.CanvasHeight,
			Quantity:    req.Quantity,
		})
		if err != nil {
			return nil, err
		}
	}

	inlined, err := export.InlineAssets(ctx, doc, s.export.Resolver)
	if err != nil {
		return nil, err
	}
	data, err := document.Encode(inlined)
	if err != nil {
		return nil, err
	}

	item := &core.CartItem{
		UserID:      userID,
		DesignID:    req.DesignID,
		ProductType: doc.ProductType,
		Material:    req.Material,
		Quantity:    req.Quantity,
		Width:       doc.CanvasWidth,
		Height:      doc.CanvasHeight,
		UnitPrice:   price,
		Preview:     s.thumbnail(ctx, inlined, log),
		Data:        data,
	}
	if _, err = s.store.CreateCartItem(ctx, item, s.cartLimit); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *Service) Cart(ctx context.Context, userID string) ([]*core.CartItem, error) {
	return s.store.ListCart(ctx, userID)
}

// CartItem returns a snapshot with its decoded document.
func (s *Service) CartItem(ctx context.Context, userID, id string) (*core.CartItem, *document.Document, error) {
	item, err := s.store.FindCartItem(ctx, userID, id)
	if err != nil {
		return nil, nil, err
	}
	doc, err := document.DecodeOrEmpty(item.Data, documentOptions(item.ProductType)...)
	return item, doc, err
}

func (s *Service) RemoveFromCart(ctx context.Context, userID, id string) error {
	return s.store.DeleteCartItem(ctx, userID, id)
}

// ForUser adapts the service to an editor.Repository scoped to one user.
func (s *Service) ForUser(userID string) editor.Repository {
	return &userRepository{service: s, userID: userID}
}

type userRepository struct {
	service *Service
	userID  string
}

func (r *userRepository) Load(ctx context.Context, id string) ([]byte, error) {
	design, err := r.service.store.Get(ctx, r.userID, id)
	if err != nil {
		return nil, err
	}
	return design.Data, nil
}

func (r *userRepository) Save(ctx context.Context, id string, data []byte) (string, error) {
	doc, err := document.Decode(data)
	if err != nil {
		return "", err
	}
	design, err := r.service.Save(ctx, r.userID, id, "", doc)
	if err != nil {
		return "", err
	}
	return design.ID, nil
}
