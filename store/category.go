package store

import "context"

// Category is a controlled vocabulary entry. The set is seeded once;
// ingestion only references existing categories and never creates new ones.
type Category struct {
	ID   int32
	Slug string
	Name string
}

const categoryCacheKey = "categories"

// ListCategories returns all categories, cached for the store's TTL.
func (s *Store) ListCategories(ctx context.Context) ([]*Category, error) {
	if cached, ok := s.categoryCache.Get(categoryCacheKey); ok {
		return cached.([]*Category), nil
	}

	categories, err := s.driver.ListCategories(ctx)
	if err != nil {
		return nil, err
	}

	s.categoryCache.Set(categoryCacheKey, categories)
	return categories, nil
}

// CategorySlugSet returns the known category slugs as a set.
func (s *Store) CategorySlugSet(ctx context.Context) (map[string]bool, error) {
	categories, err := s.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(categories))
	for _, c := range categories {
		set[c.Slug] = true
	}
	return set, nil
}
