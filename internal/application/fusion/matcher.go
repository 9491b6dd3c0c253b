package fusion

import (
	"context"

	domain "github.com/mohammadpnp/person-fusion/internal/domain/fusion"
)

// SimilarityMatcher finds stored persons sharing an extracted record's full identity tuple.
type SimilarityMatcher struct {
	persons domain.PersonRepository
}

func NewSimilarityMatcher(persons domain.PersonRepository) *SimilarityMatcher {
	return &SimilarityMatcher{persons: persons}
}

// FindSimilar is exact on all four identity fields. Partial identities never match.
func (m *SimilarityMatcher) FindSimilar(ctx context.Context, identity domain.Identity, viewerID string) ([]domain.Person, error) {
	if !identity.IsComplete() {
		return nil, nil
	}
	candidates, err := m.persons.FindByIdentity(ctx, identity, viewerID)
	if err != nil {
		return nil, err
	}
	out := candidates[:0]
	for _, p := range candidates {
		if p.VisibleTo(viewerID) {
			out = append(out, p)
		}
	}
	return out, nil
}
