package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/eresearchbill/reckon/internal/catalog/domain"
	"github.com/eresearchbill/reckon/internal/config"
	contractdomain "github.com/eresearchbill/reckon/internal/contract/domain"
	feedomain "github.com/eresearchbill/reckon/internal/fee/domain"
	"github.com/eresearchbill/reckon/internal/ingestconf"
	usagedomain "github.com/eresearchbill/reckon/internal/usage/domain"
	"github.com/eresearchbill/reckon/internal/usage/kinds"
	"github.com/eresearchbill/reckon/pkg/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	Config  config.Config
	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Catalog catalogdomain.Service
}

type Service struct {
	cfg config.Config
	db  *gorm.DB
	log *zap.Logger

	genID       *snowflake.Node
	catalog     catalogdomain.Service
	feeRepo     repository.Repository[feedomain.Fee]
	contactRepo repository.Repository[contractdomain.Contact]
	managerRepo repository.Repository[contractdomain.Manager]
}

func NewService(p ServiceParam) feedomain.Service {
	return &Service{
		cfg: p.Config,
		db:  p.DB,
		log: p.Log.Named("fee.service"),

		genID:       p.GenID,
		catalog:     p.Catalog,
		feeRepo:     repository.ProvideStore[feedomain.Fee](p.DB),
		contactRepo: repository.ProvideStore[contractdomain.Contact](p.DB),
		managerRepo: repository.ProvideStore[contractdomain.Manager](p.DB),
	}
}

func (s *Service) NewCalculator(ctx context.Context, product *catalogdomain.Product, cfg *ingestconf.Config, subs *catalogdomain.SubstituteSet) (feedomain.Calculator, error) {
	items, err := s.resolveItems(ctx, product, cfg, subs)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		if !item.Type.Billable() {
			return nil, fmt.Errorf("%w: billing item %s carries the pseudo product type", ingestconf.ErrConfiguration, item.ProductNo)
		}
	}
	return &calculator{
		svc:     s,
		items:   items,
		finders: make(map[snowflake.ID]*catalogdomain.PriceFinder, len(items)),
	}, nil
}

// resolveItems maps a product and its accessory substitutes to billing
// items, once per run.
func (s *Service) resolveItems(ctx context.Context, product *catalogdomain.Product, cfg *ingestconf.Config, subs *catalogdomain.SubstituteSet) ([]feedomain.BillingItem, error) {
	var accessories []string
	if subs != nil {
		accessories = subs.Accessories(product.No)
	}

	if len(accessories) == 0 {
		field, err := cfg.FeeField()
		if err != nil {
			return nil, err
		}
		return []feedomain.BillingItem{{
			ProductNo: product.No,
			ProductID: product.ID,
			Type:      product.Type,
			Field:     field,
		}}, nil
	}

	composition := cfg.Composition()
	items := make([]feedomain.BillingItem, 0, len(accessories)+1)
	for _, no := range accessories {
		accessory, err := s.catalog.GetByNo(ctx, no)
		if err != nil {
			return nil, err
		}
		item := feedomain.BillingItem{
			ProductNo: accessory.No,
			ProductID: accessory.ID,
			Type:      accessory.Type,
		}
		if !item.Flat() {
			field, ok := composition[no]
			if !ok {
				return nil, fmt.Errorf("%w: composition has no field for product %s", ingestconf.ErrConfiguration, no)
			}
			item.Field = field
		}
		items = append(items, item)
	}

	if product.Type.Billable() {
		field, err := cfg.FeeField()
		if err != nil {
			return nil, err
		}
		items = append(items, feedomain.BillingItem{
			ProductNo: product.No,
			ProductID: product.ID,
			Type:      product.Type,
			Field:     field,
		})
	}
	return items, nil
}

func (s *Service) SaveFee(ctx context.Context, orderlineID snowflake.ID, start, end int64, amount decimal.Decimal) error {
	_, _, err := s.feeRepo.GetOrCreate(ctx,
		&feedomain.Fee{OrderlineID: orderlineID, Start: start, End: end},
		&feedomain.Fee{
			ID:          s.genID.Generate(),
			OrderlineID: orderlineID,
			Start:       start,
			End:         end,
			Amount:      amount,
		},
	)
	return err
}

func (s *Service) List(ctx context.Context, q feedomain.Query) ([]feedomain.Record, error) {
	stmt, err := s.scopedFees(ctx, q)
	if err != nil {
		return nil, err
	}

	var records []feedomain.Record
	err = stmt.
		Select(`fees.orderline_id, orders.no AS order_no, orderlines.identifier, fees.start, fees."end", fees.amount`).
		Order("fees.start").
		Scan(&records).Error
	return records, err
}

func (s *Service) Summarize(ctx context.Context, q feedomain.Query) ([]feedomain.Sum, error) {
	stmt, err := s.scopedFees(ctx, q)
	if err != nil {
		return nil, err
	}

	var sums []feedomain.Sum
	err = stmt.
		Select(`fees.orderline_id, orders.no AS order_no, orderlines.identifier, SUM(fees.amount) AS amount`).
		Group("fees.orderline_id, orders.no, orderlines.identifier").
		Scan(&sums).Error
	return sums, err
}

func (s *Service) scopedFees(ctx context.Context, q feedomain.Query) (*gorm.DB, error) {
	return s.scoped(ctx, "fees", q)
}

// scoped builds a window-bounded query over a table carrying
// orderline_id, start and end columns, with the caller's role filter
// applied.
func (s *Service) scoped(ctx context.Context, table string, q feedomain.Query) (*gorm.DB, error) {
	stmt := s.db.WithContext(ctx).
		Table(table).
		Joins(fmt.Sprintf("JOIN orderlines ON orderlines.id = %s.orderline_id", table)).
		Joins("JOIN orders ON orders.id = orderlines.order_id").
		Where(fmt.Sprintf(`%[1]s.start >= ? AND %[1]s."end" <= ?`, table), q.Start, q.End)

	if q.ProductNo != "" {
		stmt = stmt.
			Joins("JOIN products ON products.id = orderlines.product_id").
			Where("products.no = ?", q.ProductNo)
	}

	if s.isAdmin(q.Email) {
		return stmt, nil
	}

	contact, err := s.contactRepo.FindOne(ctx, &contractdomain.Contact{Email: q.Email})
	if err != nil {
		return nil, err
	}
	if contact == nil {
		return nil, fmt.Errorf("%w: no contact with email %s", feedomain.ErrUnauthorized, q.Email)
	}

	manager, err := s.managerRepo.FindOne(ctx, &contractdomain.Manager{ContactID: contact.ID})
	if err != nil {
		return nil, err
	}
	if manager != nil {
		return stmt.Where("orders.biller_id = ?", manager.AccountID), nil
	}
	return stmt.Where("orders.manager_id IN (SELECT id FROM contacts WHERE email = ?)", q.Email), nil
}

func (s *Service) ListUsage(ctx context.Context, q feedomain.Query, kind string) ([]map[string]any, error) {
	table, err := kinds.UsageTable(kind)
	if err != nil {
		return nil, err
	}
	stmt, err := s.scoped(ctx, table, q)
	if err != nil {
		return nil, err
	}

	var rows []map[string]any
	err = stmt.
		Select(fmt.Sprintf("%s.*, orders.no AS order_no, orderlines.identifier", table)).
		Order(table + ".start").
		Find(&rows).Error
	return rows, err
}

func (s *Service) isAdmin(email string) bool {
	domain := s.cfg.AdminEmailDomain
	return domain != "" && strings.HasSuffix(email, domain)
}

// calculator caches price finders per billing-item product for the life
// of one run.
type calculator struct {
	svc     *Service
	items   []feedomain.BillingItem
	finders map[snowflake.ID]*catalogdomain.PriceFinder
}

func (c *calculator) Items() []feedomain.BillingItem { return c.items }

func (c *calculator) finder(ctx context.Context, productID snowflake.ID) (*catalogdomain.PriceFinder, error) {
	if finder, ok := c.finders[productID]; ok {
		return finder, nil
	}
	finder, err := c.svc.catalog.FinderFor(ctx, productID)
	if err != nil {
		return nil, err
	}
	c.finders[productID] = finder
	return finder, nil
}

func (c *calculator) Fee(ctx context.Context, adapter usagedomain.Adapter, obs usagedomain.Observation, priceList string) (decimal.Decimal, error) {
	window := decimal.NewFromInt(obs.End - obs.Start).Div(decimal.NewFromInt(feedomain.SecondsPerYear))

	total := decimal.Zero
	for _, item := range c.items {
		finder, err := c.finder(ctx, item.ProductID)
		if err != nil {
			return decimal.Decimal{}, err
		}
		yearly, err := finder.Price(priceList, obs.Start, obs.End)
		if err != nil {
			return decimal.Decimal{}, err
		}

		amount := yearly.Mul(window)
		if !item.Flat() {
			value, err := adapter.FeeValue(obs, item.Field)
			if err != nil {
				return decimal.Decimal{}, err
			}
			amount = amount.Mul(decimal.NewFromFloat(value))
		}
		total = total.Add(amount)
	}
	return total, nil
}
