//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"chat-router/domain"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

type IMessageRepository interface {
	StoreMessage(message domain.Message) error
	History(roomID domain.RoomID) ([]domain.Message, error)
}

type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) MessageRepository {
	return MessageRepository{db: db, log: log, limitMessages: limitMessages}
}

// storedMessage is the on-disk shape of a chat line.
type storedMessage struct {
	ID      string `cbor:"id"`
	Room    string `cbor:"room"`
	Sender  string `cbor:"sender"`
	Content string `cbor:"content"`
	At      int64  `cbor:"at"`
}

// messageKey formats "msg:{room_id}:{timestamp_padded}:{uuid}" so that:
//  1. A prefix scan returns lines in chronological order thanks to the
//     19-digit zero padding (lexicographical order).
//  2. The UUID disambiguates two messages landing on the same nanosecond.
func messageKey(message domain.Message) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%s",
		message.Room,
		message.SentAt.UnixNano(),
		message.ID,
	))
}

// StoreMessage persists a message in BadgerDB.
func (m MessageRepository) StoreMessage(message domain.Message) error {
	bytes, err := cbor.Marshal(fromMessage(message))
	if err != nil {
		return err
	}
	return m.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(message), bytes)
	})
}

// History retrieves every message of a room ordered by SentAt ascending.
// Thanks to the padded timestamp in the key, a forward prefix scan is
// already sorted; no in-memory sort is needed.
func (m MessageRepository) History(roomID domain.RoomID) ([]domain.Message, error) {
	var rawMessages [][]byte
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := []byte(fmt.Sprintf("msg:%s:", roomID))
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if m.limitMessages != nil && len(rawMessages) == *m.limitMessages {
				m.log.Debug(fmt.Sprintf("Maximum of %d messages reached", *m.limitMessages))
				break
			}
			err := it.Item().Value(func(value []byte) error {
				rawMessages = append(rawMessages, append([]byte(nil), value...))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	messages := make([]domain.Message, 0, len(rawMessages))
	for _, raw := range rawMessages {
		var stored storedMessage
		if err = cbor.Unmarshal(raw, &stored); err != nil {
			return nil, err
		}
		message, err := toMessage(stored)
		if err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}
	return messages, nil
}

func fromMessage(message domain.Message) storedMessage {
	return storedMessage{
		ID:      message.ID.String(),
		Room:    string(message.Room),
		Sender:  message.SenderID.String(),
		Content: message.Content,
		At:      message.SentAt.UnixNano(),
	}
}

func toMessage(stored storedMessage) (domain.Message, error) {
	parsedID, err := uuid.Parse(stored.ID)
	if err != nil {
		return domain.Message{}, err
	}
	senderID, err := uuid.Parse(stored.Sender)
	if err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		ID:       parsedID,
		Room:     domain.RoomID(stored.Room),
		SenderID: senderID,
		Content:  stored.Content,
		SentAt:   time.Unix(0, stored.At).UTC(),
	}, nil
}
