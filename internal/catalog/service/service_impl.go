package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/eresearchbill/reckon/internal/catalog/domain"
	"github.com/eresearchbill/reckon/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// priceListFields are the record keys a price list entry must carry.
var priceListFields = []string{
	"pricelevel", "productpricelevelid", "productid", "product",
	"productnumber", "uom", "amount", "productstructure", "producttype",
}

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID       *snowflake.Node
	productRepo repository.Repository[domain.Product]
	priceRepo   repository.Repository[domain.Price]
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("catalog.service"),

		genID:       p.GenID,
		productRepo: repository.ProvideStore[domain.Product](p.DB),
		priceRepo:   repository.ProvideStore[domain.Price](p.DB),
	}
}

func (s *Service) GetByNo(ctx context.Context, no string) (*domain.Product, error) {
	product, err := s.productRepo.FindOne(ctx, &domain.Product{No: no})
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrProductNotFound, no)
	}
	return product, nil
}

func (s *Service) LoadPriceList(ctx context.Context, records []map[string]any, validFrom int64) (domain.LoadSummary, error) {
	summary := domain.LoadSummary{Records: len(records)}
	for i, record := range records {
		for _, field := range priceListFields {
			if _, ok := record[field]; !ok {
				return summary, fmt.Errorf("price list record %d: missing %s", i, field)
			}
		}

		product, created, err := s.ensureProduct(ctx, record)
		if err != nil {
			return summary, err
		}
		if created {
			summary.ProductsCreated++
		}

		created, err = s.ensurePrice(ctx, record, product, validFrom)
		if err != nil {
			return summary, err
		}
		if created {
			summary.PricesCreated++
		}
	}

	s.log.Info("price list loaded",
		zap.Int("records", summary.Records),
		zap.Int("products_created", summary.ProductsCreated),
		zap.Int("prices_created", summary.PricesCreated),
	)
	return summary, nil
}

func (s *Service) ensureProduct(ctx context.Context, record map[string]any) (*domain.Product, bool, error) {
	no := fmt.Sprint(record["productnumber"])
	return s.productRepo.GetOrCreate(ctx,
		&domain.Product{No: no},
		&domain.Product{
			ID:        s.genID.Generate(),
			CRMID:     fmt.Sprint(record["productid"]),
			No:        no,
			Name:      fmt.Sprint(record["product"]),
			Type:      domain.ProductType(fmt.Sprint(record["producttype"])),
			Structure: fmt.Sprint(record["productstructure"]),
		},
	)
}

func (s *Service) ensurePrice(ctx context.Context, record map[string]any, product *domain.Product, validFrom int64) (bool, error) {
	amount, err := toDecimal(record["amount"])
	if err != nil {
		return false, fmt.Errorf("price for %s: %w", product.No, err)
	}
	listName := fmt.Sprint(record["pricelevel"])

	_, created, err := s.priceRepo.GetOrCreate(ctx,
		&domain.Price{ProductID: product.ID, ListName: listName, Date: validFrom},
		&domain.Price{
			ID:        s.genID.Generate(),
			ProductID: product.ID,
			ListName:  listName,
			Date:      validFrom,
			CRMID:     fmt.Sprint(record["productpricelevelid"]),
			Unit:      fmt.Sprint(record["uom"]),
			Amount:    amount,
		},
	)
	return created, err
}

func (s *Service) FinderFor(ctx context.Context, productID snowflake.ID) (*domain.PriceFinder, error) {
	prices, err := s.priceRepo.Find(ctx, &domain.Price{ProductID: productID})
	if err != nil {
		return nil, err
	}
	deref := make([]domain.Price, 0, len(prices))
	for _, p := range prices {
		deref = append(deref, *p)
	}
	return domain.NewPriceFinder(deref), nil
}

func (s *Service) ListPrices(ctx context.Context, productNo string) ([]*domain.Price, error) {
	stmt := s.db.WithContext(ctx).
		Model(&domain.Price{}).
		Order("prices.date DESC")
	if productNo != "" {
		stmt = stmt.
			Joins("JOIN products ON products.id = prices.product_id").
			Where("products.no = ?", productNo)
	}

	var prices []*domain.Price
	err := stmt.Find(&prices).Error
	return prices, err
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case float64:
		return decimal.NewFromFloat(n), nil
	case string:
		return decimal.NewFromString(n)
	case int64:
		return decimal.NewFromInt(n), nil
	default:
		return decimal.Decimal{}, fmt.Errorf("unsupported amount type %T", v)
	}
}
