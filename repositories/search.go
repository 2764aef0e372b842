//go:generate go run go.uber.org/mock/mockgen -source=search.go -destination=../mocks/mock_search_repository.go -package=mocks
package repositories

import (
	"chat-router/domain"
	"context"
	"fmt"
	"log/slog"

	"github.com/blugelabs/bluge"
)

type ISearchRepository interface {
	Index(message domain.Message) error
	Search(ctx context.Context, roomID domain.RoomID, terms string) ([]SearchHit, error)
}

// SearchHit is one matched line, ready for point-to-session delivery.
type SearchHit struct {
	Sender  string
	Content string
}

// SearchRepository maintains a Bluge full-text index of broadcast
// messages. Indexing is fire-and-forget from the room workers; a lost
// index entry only degrades search, never chat delivery.
type SearchRepository struct {
	writer *bluge.Writer
	log    *slog.Logger
	limit  int
}

func NewSearchRepository(writer *bluge.Writer, log *slog.Logger, limit int) *SearchRepository {
	return &SearchRepository{writer: writer, log: log, limit: limit}
}

func (s *SearchRepository) Index(message domain.Message) error {
	doc := bluge.NewDocument(message.ID.String()).
		AddField(bluge.NewKeywordField("room", string(message.Room))).
		AddField(bluge.NewKeywordField("sender", message.SenderID.String()).StoreValue()).
		AddField(bluge.NewTextField("content", message.Content).StoreValue()).
		AddField(bluge.NewDateTimeField("sent_at", message.SentAt))
	return s.writer.Update(doc.ID(), doc)
}

// Search matches terms against the room's indexed content.
func (s *SearchRepository) Search(ctx context.Context, roomID domain.RoomID, terms string) ([]SearchHit, error) {
	reader, err := s.writer.Reader()
	if err != nil {
		return nil, fmt.Errorf("opening index reader: %w", err)
	}
	defer func() {
		_ = reader.Close()
	}()

	query := bluge.NewBooleanQuery().
		AddMust(bluge.NewMatchQuery(terms).SetField("content")).
		AddMust(bluge.NewTermQuery(string(roomID)).SetField("room"))

	iterator, err := reader.Search(ctx, bluge.NewTopNSearch(s.limit, query))
	if err != nil {
		return nil, fmt.Errorf("searching room %s: %w", roomID, err)
	}

	var hits []SearchHit
	for {
		match, err := iterator.Next()
		if err != nil {
			return nil, err
		}
		if match == nil {
			break
		}
		var hit SearchHit
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "sender":
				hit.Sender = string(value)
			case "content":
				hit.Content = string(value)
			}
			return true
		})
		if err != nil {
			return nil, err
		}
		hits = append(hits, hit)
	}
	return hits, nil
}
