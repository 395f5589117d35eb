// Package memory is an in-memory implementation of the persistence
// layer. It satisfies the same repository interfaces as the SQL store
// and maintains the same dense position invariants, which makes it the
// storage fake for unit tests and a way to run the server without
// Postgres. One mutex serializes all mutation, which trivially gives
// each sibling group the transactional behavior the SQL store gets
// from its per-operation transactions.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/taskboard/apiserver/internal/store"
	"github.com/taskboard/apiserver/types"
)

// Store holds all entities behind a single lock.
type Store struct {
	mu          sync.Mutex
	users       map[uuid.UUID]types.User
	boards      map[uuid.UUID]types.Board
	lists       map[uuid.UUID]types.List
	cards       map[uuid.UUID]types.Card
	attachments map[uuid.UUID]types.Attachment
}

func New() *Store {
	return &Store{
		users:       make(map[uuid.UUID]types.User),
		boards:      make(map[uuid.UUID]types.Board),
		lists:       make(map[uuid.UUID]types.List),
		cards:       make(map[uuid.UUID]types.Card),
		attachments: make(map[uuid.UUID]types.Attachment),
	}
}

// Users returns the user repository view of the store.
func (s *Store) Users() *UserStore { return &UserStore{s} }

// Boards returns the board repository view of the store.
func (s *Store) Boards() *BoardStore { return &BoardStore{s} }

// Lists returns the list repository view of the store.
func (s *Store) Lists() *ListStore { return &ListStore{s} }

// Cards returns the card repository view of the store.
func (s *Store) Cards() *CardStore { return &CardStore{s} }

// Attachments returns the attachment repository view of the store.
func (s *Store) Attachments() *AttachmentStore { return &AttachmentStore{s} }

func (s *Store) listsByBoard(boardID uuid.UUID) []types.List {
	lists := make([]types.List, 0)
	for _, list := range s.lists {
		if list.BoardID == boardID {
			lists = append(lists, list)
		}
	}
	sort.Slice(lists, func(i, j int) bool { return lists[i].Position < lists[j].Position })
	return lists
}

func (s *Store) cardsByList(listID uuid.UUID) []types.Card {
	cards := make([]types.Card, 0)
	for _, card := range s.cards {
		if card.ListID == listID {
			cards = append(cards, card)
		}
	}
	sort.Slice(cards, func(i, j int) bool { return cards[i].Position < cards[j].Position })
	return cards
}

func clampPosition(position, max int) int {
	if position < 0 || max < 0 {
		return 0
	}
	if position > max {
		return max
	}
	return position
}

// UserStore implements user persistence.
type UserStore struct{ s *Store }

func (u *UserStore) GetByID(_ context.Context, id uuid.UUID) (types.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	user, ok := u.s.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (u *UserStore) GetByEmail(_ context.Context, email string) (types.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	for _, user := range u.s.users {
		if user.Email == email {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (u *UserStore) GetByUsername(_ context.Context, username string) (types.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	for _, user := range u.s.users {
		if user.Username == username {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (u *UserStore) Create(_ context.Context, user types.User) (types.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	for _, existing := range u.s.users {
		if existing.Email == user.Email || existing.Username == user.Username {
			return types.User{}, store.ErrConflict
		}
	}
	now := time.Now()
	user.ID = uuid.New()
	user.CreatedAt = now
	user.UpdatedAt = now
	u.s.users[user.ID] = user
	return user, nil
}

func (u *UserStore) Update(_ context.Context, user types.User) (types.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	if _, ok := u.s.users[user.ID]; !ok {
		return types.User{}, store.ErrNotFound
	}
	for _, existing := range u.s.users {
		if existing.ID == user.ID {
			continue
		}
		if existing.Email == user.Email || existing.Username == user.Username {
			return types.User{}, store.ErrConflict
		}
	}
	user.UpdatedAt = time.Now()
	u.s.users[user.ID] = user
	return user, nil
}

// BoardStore implements board persistence with explicit cascades.
type BoardStore struct{ s *Store }

func (b *BoardStore) GetByID(_ context.Context, id uuid.UUID) (types.Board, error) {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	board, ok := b.s.boards[id]
	if !ok {
		return types.Board{}, store.ErrNotFound
	}
	return board, nil
}

func (b *BoardStore) ListByOwner(_ context.Context, ownerID uuid.UUID) ([]types.Board, error) {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	boards := make([]types.Board, 0)
	for _, board := range b.s.boards {
		if board.OwnerID == ownerID {
			boards = append(boards, board)
		}
	}
	sort.Slice(boards, func(i, j int) bool { return boards[i].CreatedAt.Before(boards[j].CreatedAt) })
	return boards, nil
}

func (b *BoardStore) GetDetail(_ context.Context, id uuid.UUID) (types.BoardDetail, error) {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	board, ok := b.s.boards[id]
	if !ok {
		return types.BoardDetail{}, store.ErrNotFound
	}
	detail := types.BoardDetail{Board: board, Lists: make([]types.ListDetail, 0)}
	for _, list := range b.s.listsByBoard(id) {
		detail.Lists = append(detail.Lists, types.ListDetail{
			List:  list,
			Cards: b.s.cardsByList(list.ID),
		})
	}
	return detail, nil
}

func (b *BoardStore) Create(_ context.Context, board types.Board) (types.Board, error) {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	now := time.Now()
	board.ID = uuid.New()
	board.CreatedAt = now
	board.UpdatedAt = now
	b.s.boards[board.ID] = board
	return board, nil
}

func (b *BoardStore) Update(_ context.Context, board types.Board) (types.Board, error) {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	existing, ok := b.s.boards[board.ID]
	if !ok {
		return types.Board{}, store.ErrNotFound
	}
	existing.Title = board.Title
	existing.Description = board.Description
	existing.UpdatedAt = time.Now()
	b.s.boards[board.ID] = existing
	return existing, nil
}

func (b *BoardStore) Delete(_ context.Context, id uuid.UUID) error {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	if _, ok := b.s.boards[id]; !ok {
		return store.ErrNotFound
	}
	for _, list := range b.s.listsByBoard(id) {
		b.s.deleteCardsOfList(list.ID)
		delete(b.s.lists, list.ID)
	}
	delete(b.s.boards, id)
	return nil
}

func (s *Store) deleteCardsOfList(listID uuid.UUID) {
	for _, card := range s.cardsByList(listID) {
		for _, att := range s.attachments {
			if att.CardID == card.ID {
				delete(s.attachments, att.ID)
			}
		}
		delete(s.cards, card.ID)
	}
}

// ListStore implements list persistence and position management.
type ListStore struct{ s *Store }

func (l *ListStore) GetByID(_ context.Context, id uuid.UUID) (types.List, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	list, ok := l.s.lists[id]
	if !ok {
		return types.List{}, store.ErrNotFound
	}
	return list, nil
}

func (l *ListStore) ListByBoard(_ context.Context, boardID uuid.UUID) ([]types.List, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	return l.s.listsByBoard(boardID), nil
}

func (l *ListStore) Create(_ context.Context, list types.List) (types.List, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	now := time.Now()
	list.ID = uuid.New()
	list.Position = len(l.s.listsByBoard(list.BoardID))
	list.CreatedAt = now
	list.UpdatedAt = now
	l.s.lists[list.ID] = list
	return list, nil
}

func (l *ListStore) Update(_ context.Context, list types.List) (types.List, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	existing, ok := l.s.lists[list.ID]
	if !ok {
		return types.List{}, store.ErrNotFound
	}
	existing.Title = list.Title
	existing.UpdatedAt = time.Now()
	l.s.lists[list.ID] = existing
	return existing, nil
}

func (l *ListStore) Reorder(_ context.Context, id uuid.UUID, newPosition int) (types.List, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	list, ok := l.s.lists[id]
	if !ok {
		return types.List{}, store.ErrNotFound
	}

	siblings := l.s.listsByBoard(list.BoardID)
	newPosition = clampPosition(newPosition, len(siblings)-1)
	if newPosition == list.Position {
		return list, nil
	}

	for _, sibling := range siblings {
		if sibling.ID == list.ID {
			continue
		}
		switch {
		case newPosition < list.Position && sibling.Position >= newPosition && sibling.Position < list.Position:
			sibling.Position++
			l.s.lists[sibling.ID] = sibling
		case newPosition > list.Position && sibling.Position > list.Position && sibling.Position <= newPosition:
			sibling.Position--
			l.s.lists[sibling.ID] = sibling
		}
	}

	list.Position = newPosition
	list.UpdatedAt = time.Now()
	l.s.lists[id] = list
	return list, nil
}

func (l *ListStore) Delete(_ context.Context, id uuid.UUID) error {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	list, ok := l.s.lists[id]
	if !ok {
		return store.ErrNotFound
	}
	l.s.deleteCardsOfList(id)
	delete(l.s.lists, id)
	for _, sibling := range l.s.listsByBoard(list.BoardID) {
		if sibling.Position > list.Position {
			sibling.Position--
			l.s.lists[sibling.ID] = sibling
		}
	}
	return nil
}

// CardStore implements card persistence and position management.
type CardStore struct{ s *Store }

func (c *CardStore) GetByID(_ context.Context, id uuid.UUID) (types.Card, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	card, ok := c.s.cards[id]
	if !ok {
		return types.Card{}, store.ErrNotFound
	}
	return card, nil
}

func (c *CardStore) ListByList(_ context.Context, listID uuid.UUID) ([]types.Card, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	return c.s.cardsByList(listID), nil
}

func (c *CardStore) Create(_ context.Context, card types.Card) (types.Card, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	now := time.Now()
	card.ID = uuid.New()
	card.Position = len(c.s.cardsByList(card.ListID))
	card.CreatedAt = now
	card.UpdatedAt = now
	c.s.cards[card.ID] = card
	return card, nil
}

func (c *CardStore) Update(_ context.Context, card types.Card) (types.Card, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	existing, ok := c.s.cards[card.ID]
	if !ok {
		return types.Card{}, store.ErrNotFound
	}
	existing.Title = card.Title
	existing.Description = card.Description
	existing.AssignedToID = card.AssignedToID
	existing.DueDate = card.DueDate
	existing.Priority = card.Priority
	existing.UpdatedAt = time.Now()
	c.s.cards[card.ID] = existing
	return existing, nil
}

func (c *CardStore) Reorder(_ context.Context, id uuid.UUID, newPosition int) (types.Card, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	card, ok := c.s.cards[id]
	if !ok {
		return types.Card{}, store.ErrNotFound
	}
	return c.reorderLocked(card, newPosition), nil
}

func (c *CardStore) reorderLocked(card types.Card, newPosition int) types.Card {
	siblings := c.s.cardsByList(card.ListID)
	newPosition = clampPosition(newPosition, len(siblings)-1)
	if newPosition == card.Position {
		return card
	}

	for _, sibling := range siblings {
		if sibling.ID == card.ID {
			continue
		}
		switch {
		case newPosition < card.Position && sibling.Position >= newPosition && sibling.Position < card.Position:
			sibling.Position++
			c.s.cards[sibling.ID] = sibling
		case newPosition > card.Position && sibling.Position > card.Position && sibling.Position <= newPosition:
			sibling.Position--
			c.s.cards[sibling.ID] = sibling
		}
	}

	card.Position = newPosition
	card.UpdatedAt = time.Now()
	c.s.cards[card.ID] = card
	return card
}

func (c *CardStore) Move(_ context.Context, id, targetListID uuid.UUID, newPosition int) (types.Card, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	card, ok := c.s.cards[id]
	if !ok {
		return types.Card{}, store.ErrNotFound
	}

	if card.ListID == targetListID {
		return c.reorderLocked(card, newPosition), nil
	}

	for _, sibling := range c.s.cardsByList(card.ListID) {
		if sibling.Position > card.Position {
			sibling.Position--
			c.s.cards[sibling.ID] = sibling
		}
	}

	targets := c.s.cardsByList(targetListID)
	newPosition = clampPosition(newPosition, len(targets))
	for _, sibling := range targets {
		if sibling.Position >= newPosition {
			sibling.Position++
			c.s.cards[sibling.ID] = sibling
		}
	}

	card.ListID = targetListID
	card.Position = newPosition
	card.UpdatedAt = time.Now()
	c.s.cards[card.ID] = card
	return card, nil
}

func (c *CardStore) Delete(_ context.Context, id uuid.UUID) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	card, ok := c.s.cards[id]
	if !ok {
		return store.ErrNotFound
	}
	for _, att := range c.s.attachments {
		if att.CardID == id {
			delete(c.s.attachments, att.ID)
		}
	}
	delete(c.s.cards, id)
	for _, sibling := range c.s.cardsByList(card.ListID) {
		if sibling.Position > card.Position {
			sibling.Position--
			c.s.cards[sibling.ID] = sibling
		}
	}
	return nil
}

// AttachmentStore implements attachment metadata persistence.
type AttachmentStore struct{ s *Store }

func (a *AttachmentStore) GetByID(_ context.Context, id uuid.UUID) (types.Attachment, error) {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	att, ok := a.s.attachments[id]
	if !ok {
		return types.Attachment{}, store.ErrNotFound
	}
	return att, nil
}

func (a *AttachmentStore) ListByCard(_ context.Context, cardID uuid.UUID) ([]types.Attachment, error) {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	attachments := make([]types.Attachment, 0)
	for _, att := range a.s.attachments {
		if att.CardID == cardID {
			attachments = append(attachments, att)
		}
	}
	sort.Slice(attachments, func(i, j int) bool { return attachments[i].CreatedAt.Before(attachments[j].CreatedAt) })
	return attachments, nil
}

func (a *AttachmentStore) Create(_ context.Context, att types.Attachment) (types.Attachment, error) {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	att.ID = uuid.New()
	att.CreatedAt = time.Now()
	a.s.attachments[att.ID] = att
	return att, nil
}

func (a *AttachmentStore) Delete(_ context.Context, id uuid.UUID) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	if _, ok := a.s.attachments[id]; !ok {
		return store.ErrNotFound
	}
	delete(a.s.attachments, id)
	return nil
}
