package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/eresearchbill/reckon/internal/contract/domain"
	"github.com/eresearchbill/reckon/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID         *snowflake.Node
	accountRepo   repository.Repository[domain.Account]
	contactRepo   repository.Repository[domain.Contact]
	orderRepo     repository.Repository[domain.Order]
	orderlineRepo repository.Repository[domain.Orderline]
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("contract.service"),

		genID:         p.GenID,
		accountRepo:   repository.ProvideStore[domain.Account](p.DB),
		contactRepo:   repository.ProvideStore[domain.Contact](p.DB),
		orderRepo:     repository.ProvideStore[domain.Order](p.DB),
		orderlineRepo: repository.ProvideStore[domain.Orderline](p.DB),
	}
}

func (s *Service) Link(ctx context.Context, dir *domain.AccountDirectory, roster *domain.ContactRoster, record map[string]any) (*domain.Linkage, error) {
	extractor := domain.NewExtractor(record)

	manager, err := extractor.Manager()
	if err != nil {
		return nil, err
	}
	contact, err := roster.Get(manager.Email)
	if err != nil {
		return nil, err
	}
	lineage, err := dir.Lineage(contact.UnitAccountID)
	if err != nil {
		return nil, err
	}

	// Top level account first, unit second when there is one.
	parent, err := s.ensureAccount(ctx, lineage[0], nil)
	if err != nil {
		return nil, err
	}
	unit := parent
	if len(lineage) > 1 {
		unit, err = s.ensureAccount(ctx, lineage[1], &parent.ID)
		if err != nil {
			return nil, err
		}
	}

	contactRow, _, err := s.contactRepo.GetOrCreate(ctx,
		&domain.Contact{CRMID: manager.ContactID},
		&domain.Contact{
			ID:        s.genID.Generate(),
			CRMID:     manager.ContactID,
			Name:      manager.Name,
			Email:     manager.Email,
			AccountID: unit.ID,
		},
	)
	if err != nil {
		return nil, err
	}

	billerName, err := extractor.Biller()
	if err != nil {
		return nil, err
	}
	// Either side of the hierarchy can pay for an order.
	var biller *domain.Account
	switch billerName {
	case parent.Name:
		biller = parent
	case unit.Name:
		biller = unit
	default:
		return nil, fmt.Errorf("%w: biller %q is neither %q nor %q", domain.ErrLinkage, billerName, parent.Name, unit.Name)
	}

	return &domain.Linkage{Biller: biller, Manager: contactRow}, nil
}

func (s *Service) ensureAccount(ctx context.Context, ref domain.AccountRef, parentID *snowflake.ID) (*domain.Account, error) {
	account, _, err := s.accountRepo.GetOrCreate(ctx,
		&domain.Account{CRMID: ref.CRMID},
		&domain.Account{
			ID:       s.genID.Generate(),
			CRMID:    ref.CRMID,
			Name:     ref.Name,
			ParentID: parentID,
		},
	)
	return account, err
}

func (s *Service) EnsureOrder(ctx context.Context, record map[string]any, linkage *domain.Linkage) (*domain.Order, error) {
	info, err := domain.NewExtractor(record).Order()
	if err != nil {
		return nil, err
	}

	order, created, err := s.orderRepo.GetOrCreate(ctx,
		&domain.Order{Name: info.Name, No: info.No, CRMID: info.CRMID, PriceList: info.PriceList},
		&domain.Order{
			ID:        s.genID.Generate(),
			CRMID:     info.CRMID,
			Name:      info.Name,
			No:        info.No,
			BillerID:  linkage.Biller.ID,
			ManagerID: linkage.Manager.ID,
			PriceList: info.PriceList,
		},
	)
	if err != nil {
		return nil, err
	}
	if created {
		s.log.Info("order created",
			zap.String("no", info.No),
			zap.String("price_list", info.PriceList),
		)
	}
	return order, nil
}

func (s *Service) EnsureOrderline(ctx context.Context, order *domain.Order, productID snowflake.ID, record map[string]any, idKey, identifier string) (*domain.Orderline, error) {
	info, err := domain.NewExtractor(record).Orderline(idKey)
	if err != nil {
		return nil, err
	}
	if identifier == "" {
		identifier = info.Identifier
	}

	line, _, err := s.orderlineRepo.GetOrCreate(ctx,
		&domain.Orderline{OrderID: order.ID, ProductID: productID, Identifier: identifier},
		&domain.Orderline{
			ID:         s.genID.Generate(),
			OrderID:    order.ID,
			ProductID:  productID,
			Identifier: identifier,
			Quantity:   info.Quantity,
			Price:      info.Price,
		},
	)
	if err != nil {
		return nil, err
	}
	line.Order = order
	return line, nil
}

func (s *Service) FindOrderline(ctx context.Context, identifier string, productID snowflake.ID) (*domain.Orderline, error) {
	var line domain.Orderline
	err := s.db.WithContext(ctx).
		Preload("Order").
		Where(&domain.Orderline{Identifier: identifier, ProductID: productID}).
		First(&line).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: no orderline with identifier %q for product %d", domain.ErrLinkage, identifier, productID)
		}
		return nil, err
	}
	return &line, nil
}

func (s *Service) GetOrderline(ctx context.Context, id snowflake.ID) (*domain.Orderline, error) {
	var line domain.Orderline
	err := s.db.WithContext(ctx).
		Preload("Order").
		First(&line, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &line, nil
}

func (s *Service) OrderlinesByProduct(ctx context.Context, productID snowflake.ID) ([]*domain.Orderline, error) {
	var lines []*domain.Orderline
	err := s.db.WithContext(ctx).
		Preload("Order").
		Where(&domain.Orderline{ProductID: productID}).
		Find(&lines).Error
	return lines, err
}
