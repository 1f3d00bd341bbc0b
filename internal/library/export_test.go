package library

import "context"

// ExecForTest runs raw SQL against the store.
func (s *Store) ExecForTest(ctx context.Context, query string) error {
	_, err := s.exec(ctx, s.db, query)
	return err
}
