package customer

import (
	"context"
	"errors"

	"github.com/wichananm65/urbancart-backend/internal/address"
	"github.com/wichananm65/urbancart-backend/internal/auth"
	"github.com/wichananm65/urbancart-backend/internal/logging"
	"go.uber.org/zap"
)

// Accounts toggles the login account behind a customer profile.
type Accounts interface {
	SetActive(ctx context.Context, userID int, active bool) error
}

// AddressOwner confirms an address belongs to a customer.
type AddressOwner interface {
	FindForCustomer(ctx context.Context, customerID, id int) (address.Address, error)
}

type Service struct {
	repo      Repository
	accounts  Accounts
	addresses AddressOwner
}

func NewService(repo Repository, accounts Accounts, addresses AddressOwner) *Service {
	return &Service{repo: repo, accounts: accounts, addresses: addresses}
}

// GetOrCreateForUser returns the profile for p, creating an empty one on
// first use.
func (s *Service) GetOrCreateForUser(ctx context.Context, p auth.Principal) (Customer, error) {
	c, err := s.repo.GetByUser(ctx, p.UserID)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Customer{}, err
	}
	return s.repo.CreateIfMissing(ctx, Customer{UserID: p.UserID, Email: p.Email, Active: true})
}

func (s *Service) InitProfile(ctx context.Context, p auth.Principal, givenName, familyName, phone string) error {
	c, err := s.GetOrCreateForUser(ctx, p)
	if err != nil {
		return err
	}
	_, err = s.repo.Update(ctx, ProfileUpdate{GivenName: &givenName, FamilyName: &familyName, Phone: &phone}.apply(c))
	return err
}

// CustomerIDFor resolves the active customer profile for an authenticated user.
func (s *Service) CustomerIDFor(ctx context.Context, p auth.Principal) (int, error) {
	c, err := s.GetOrCreateForUser(ctx, p)
	if err != nil {
		return 0, err
	}
	if !c.Active {
		return 0, ErrInactive
	}
	return c.ID, nil
}

func (s *Service) Get(ctx context.Context, id int) (Customer, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) GetByUser(ctx context.Context, userID int) (Customer, error) {
	return s.repo.GetByUser(ctx, userID)
}

func (s *Service) List(ctx context.Context) ([]Customer, error) {
	return s.repo.List(ctx)
}

func (s *Service) UpdateProfile(ctx context.Context, id int, upd ProfileUpdate) (Customer, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return Customer{}, err
	}
	for _, addrID := range []*int{upd.ShippingAddressID, upd.BillingAddressID} {
		if addrID == nil || s.addresses == nil {
			continue
		}
		if _, err := s.addresses.FindForCustomer(ctx, id, *addrID); err != nil {
			return Customer{}, err
		}
	}
	return s.repo.Update(ctx, upd.apply(c))
}

// SetActive deactivates or reactivates a customer. Profiles are never deleted
// so their orders stay attributable.
func (s *Service) SetActive(ctx context.Context, id int, active bool) (Customer, error) {
	c, err := s.repo.SetActive(ctx, id, active)
	if err != nil {
		return Customer{}, err
	}
	if s.accounts != nil {
		if err := s.accounts.SetActive(ctx, c.UserID, active); err != nil {
			return Customer{}, err
		}
	}
	logging.FromContext(ctx).Info("customer_status_changed",
		zap.Int("customer_id", id), zap.Bool("active", active))
	return c, nil
}
