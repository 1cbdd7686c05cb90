package store

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/pbcachim/baralhos/internal/domain"
)

// deckSelect is the joined deck view: every category table contributes its
// id and name, in domain.Tables order.
func deckSelect() sq.SelectBuilder {
	cols := []string{"decks.id"}
	for _, t := range domain.Tables {
		cols = append(cols, t.Name()+".id", t.Name()+".name")
	}
	cols = append(cols, "decks.description", "decks.images", "decks.created_at", "decks.updated_at")

	q := sq.Select(cols...).From("decks")
	for _, t := range domain.Tables {
		q = q.Join(fmt.Sprintf("%s ON decks.%s = %s.id", t.Name(), t.Column(), t.Name()))
	}
	return q
}

// deckQuery builds the filtered deck listing. Each non-zero entry adds an
// equality predicate; predicates are ANDed.
func deckQuery(filter domain.DeckFilter) (string, []any, error) {
	q := deckSelect()
	for _, t := range domain.Tables {
		if id := filter[t]; id != 0 {
			q = q.Where(sq.Eq{"decks." + t.Column(): id})
		}
	}
	return q.OrderBy("decks.id ASC").ToSql()
}

func deckByIDQuery(id int64) (string, []any, error) {
	return deckSelect().Where(sq.Eq{"decks.id": id}).ToSql()
}

// storedDeckByIDQuery reads deck id even when some of its categories were
// deleted. Ids come from the deck row; a missing category has an empty name.
func storedDeckByIDQuery(id int64) (string, []any, error) {
	cols := []string{"decks.id"}
	for _, t := range domain.Tables {
		cols = append(cols, "decks."+t.Column(), fmt.Sprintf("COALESCE(%s.name, '')", t.Name()))
	}
	cols = append(cols, "decks.description", "decks.images", "decks.created_at", "decks.updated_at")

	q := sq.Select(cols...).From("decks")
	for _, t := range domain.Tables {
		q = q.LeftJoin(fmt.Sprintf("%s ON decks.%s = %s.id", t.Name(), t.Column(), t.Name()))
	}
	return q.Where(sq.Eq{"decks.id": id}).ToSql()
}
