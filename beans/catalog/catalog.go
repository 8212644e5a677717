// Package catalog provides ItemService, a stateless component that manages
// books and CDs in the data store.
package catalog

import (
	"context"
	"log/slog"
	"strings"

	"github.com/c360/beancontainer/component"
	"github.com/c360/beancontainer/datastore"
	"github.com/c360/beancontainer/errors"
)

// Name is the registered component name
const Name = "ItemService"

// Record types
const (
	TypeBook = "book"
	TypeCD   = "cd"
)

// Environment entries read by convertPrice
const (
	EnvCurrency   = "currency"
	EnvChangeRate = "change_rate"
)

// Defaults used when no environment entry is configured
const (
	DefaultCurrency   = "Euro"
	DefaultChangeRate = 0.80
)

// ErrCannotCreateBook is returned when a book violates the catalog rules.
// Any write made in the same call is rolled back.
var ErrCannotCreateBook = errors.New("cannot create book")

// Book is a catalog item
type Book struct {
	ID            string  `json:"id,omitempty"`
	Title         string  `json:"title"`
	Price         float64 `json:"price"`
	Description   string  `json:"description,omitempty"`
	ISBN          string  `json:"isbn,omitempty"`
	NbOfPages     int     `json:"nb_of_pages,omitempty"`
	Illustrations bool    `json:"illustrations,omitempty"`
}

// CD is a catalog item
type CD struct {
	ID            string  `json:"id,omitempty"`
	Title         string  `json:"title"`
	Price         float64 `json:"price"`
	Description   string  `json:"description,omitempty"`
	MusicCompany  string  `json:"music_company,omitempty"`
	NumberOfCDs   int     `json:"number_of_cds,omitempty"`
	TotalDuration float64 `json:"total_duration,omitempty"`
	Genre         string  `json:"genre,omitempty"`
}

// PricedItem is the argument and result of convertPrice
type PricedItem struct {
	Title    string  `json:"title"`
	Price    float64 `json:"price"`
	Currency string  `json:"currency,omitempty"`
}

// Service implements the ItemService operations
type Service struct {
	store      datastore.DataStore
	logger     *slog.Logger
	currency   string
	changeRate float64
}

// New builds a Service from its dependencies
func New(deps component.Dependencies) (component.Instance, error) {
	if deps.Store == nil {
		return nil, errors.Newf(errors.ErrInvalidArgument, "%s requires a data store", Name)
	}
	logger := deps.GetLoggerWithComponent(Name)
	return &Service{
		store:      deps.Store,
		logger:     logger,
		currency:   deps.Env.String(EnvCurrency, DefaultCurrency),
		changeRate: deps.Env.Float64(EnvChangeRate, DefaultChangeRate),
	}, nil
}

// Operations implements component.Instance
func (s *Service) Operations() map[string]component.Operation {
	return map[string]component.Operation{
		"findBooks":    s.findBooks,
		"findBookById": s.findBookByID,
		"createBook":   s.createBook,
		"updateBook":   s.updateBook,
		"deleteBook":   s.deleteBook,
		"findCDs":      s.findCDs,
		"findCDById":   s.findCDByID,
		"createCD":     s.createCD,
		"updateCD":     s.updateCD,
		"deleteCD":     s.deleteCD,
		"convertPrice": s.convertPrice,
	}
}

func (s *Service) findBooks(ctx context.Context, _ component.Args) (any, error) {
	return datastore.List[Book](ctx, s.store, datastore.Query{Name: "findAllBooks", Type: TypeBook})
}

func (s *Service) findBookByID(ctx context.Context, args component.Args) (any, error) {
	id, err := component.Arg[string](args, 0)
	if err != nil {
		return nil, err
	}
	return datastore.Get[Book](ctx, s.store, TypeBook, id)
}

// createBook persists the book and then checks it. A book that fails the
// check is not kept, even though it was already written in this call.
func (s *Service) createBook(ctx context.Context, args component.Args) (any, error) {
	book, err := component.Arg[Book](args, 0)
	if err != nil {
		return nil, err
	}

	err = datastore.WithinTx(ctx, s.store, func(ctx context.Context, tx datastore.DataStore) error {
		id, err := datastore.Insert(ctx, tx, TypeBook, book.ID, book)
		if err != nil {
			return err
		}
		book.ID = id
		if err := checkBook(book); err != nil {
			s.logger.Info("book rejected, rolling back", "title", book.Title, "error", err)
			return err
		}
		return datastore.Replace(ctx, tx, TypeBook, id, book)
	})
	if err != nil {
		return nil, err
	}
	return book, nil
}

func checkBook(b Book) error {
	var err error
	switch {
	case strings.TrimSpace(b.Title) == "":
		err = errors.Newf(ErrCannotCreateBook, "title is required")
	case b.Price < 0:
		err = errors.Newf(ErrCannotCreateBook, "%q has a negative price", b.Title)
	case b.NbOfPages < 0:
		err = errors.Newf(ErrCannotCreateBook, "%q has a negative page count", b.Title)
	}
	return errors.WrapInvalid(err, Name, "createBook", "check book")
}

func (s *Service) updateBook(ctx context.Context, args component.Args) (any, error) {
	book, err := component.Arg[Book](args, 0)
	if err != nil {
		return nil, err
	}
	if err := datastore.Replace(ctx, s.store, TypeBook, book.ID, book); err != nil {
		return nil, err
	}
	return book, nil
}

func (s *Service) deleteBook(ctx context.Context, args component.Args) (any, error) {
	book, err := component.Arg[Book](args, 0)
	if err != nil {
		return nil, err
	}
	return nil, s.store.Delete(ctx, TypeBook, book.ID)
}

func (s *Service) findCDs(ctx context.Context, _ component.Args) (any, error) {
	return datastore.List[CD](ctx, s.store, datastore.Query{Name: "findAllCDs", Type: TypeCD})
}

func (s *Service) findCDByID(ctx context.Context, args component.Args) (any, error) {
	id, err := component.Arg[string](args, 0)
	if err != nil {
		return nil, err
	}
	return datastore.Get[CD](ctx, s.store, TypeCD, id)
}

func (s *Service) createCD(ctx context.Context, args component.Args) (any, error) {
	cd, err := component.Arg[CD](args, 0)
	if err != nil {
		return nil, err
	}
	id, err := datastore.Insert(ctx, s.store, TypeCD, cd.ID, cd)
	if err != nil {
		return nil, err
	}
	cd.ID = id
	if err := datastore.Replace(ctx, s.store, TypeCD, id, cd); err != nil {
		return nil, err
	}
	return cd, nil
}

func (s *Service) updateCD(ctx context.Context, args component.Args) (any, error) {
	cd, err := component.Arg[CD](args, 0)
	if err != nil {
		return nil, err
	}
	if err := datastore.Replace(ctx, s.store, TypeCD, cd.ID, cd); err != nil {
		return nil, err
	}
	return cd, nil
}

func (s *Service) deleteCD(ctx context.Context, args component.Args) (any, error) {
	cd, err := component.Arg[CD](args, 0)
	if err != nil {
		return nil, err
	}
	return nil, s.store.Delete(ctx, TypeCD, cd.ID)
}

// convertPrice multiplies the price by the configured change rate and stamps the currency
func (s *Service) convertPrice(_ context.Context, args component.Args) (any, error) {
	item, err := component.Arg[PricedItem](args, 0)
	if err != nil {
		return nil, err
	}
	item.Price *= s.changeRate
	item.Currency = s.currency
	return item, nil
}

// Definition describes ItemService. It exposes three views: Local with the
// create and find operations, Remote with the finders only, and NoInterface
// with everything.
func Definition() component.Definition {
	return component.Definition{
		Name:        Name,
		Description: "Stateless catalog of books and CDs",
		Kind:        component.Stateless,
		Views: []component.View{
			{Name: "Local", Operations: []string{"findBooks", "createBook", "findCDs", "createCD"}},
			{Name: "Remote", Operations: []string{"findBooks", "findCDs"}},
			{Name: "NoInterface"},
		},
		Factory: New,
	}
}

// Register adds ItemService to registry
func Register(registry *component.Registry) error {
	return registry.Register(Definition())
}
