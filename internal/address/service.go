package address

import "context"

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, customerID int, in Input) (Address, error) {
	if err := in.Validate(); err != nil {
		return Address{}, err
	}
	return s.repo.Create(ctx, in.ToAddress(customerID))
}

func (s *Service) Find(ctx context.Context, id int) (Address, error) {
	return s.repo.Find(ctx, id)
}

// FindForCustomer hides addresses owned by someone else behind ErrNotFound.
func (s *Service) FindForCustomer(ctx context.Context, customerID, id int) (Address, error) {
	a, err := s.repo.Find(ctx, id)
	if err != nil {
		return Address{}, err
	}
	if a.CustomerID != customerID {
		return Address{}, ErrNotFound
	}
	return a, nil
}

func (s *Service) List(ctx context.Context, customerID int) ([]Address, error) {
	return s.repo.ListByCustomer(ctx, customerID)
}

// Update edits the book entry in place. Orders keep their own snapshot, so
// historical orders are unaffected.
func (s *Service) Update(ctx context.Context, customerID, id int, in Input) (Address, error) {
	if err := in.Validate(); err != nil {
		return Address{}, err
	}
	a := in.ToAddress(customerID)
	a.ID = id
	return s.repo.Update(ctx, a)
}

func (s *Service) Delete(ctx context.Context, customerID, id int) error {
	return s.repo.Delete(ctx, customerID, id)
}
