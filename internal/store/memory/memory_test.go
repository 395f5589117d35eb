package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/taskboard/apiserver/internal/store"
	"github.com/taskboard/apiserver/types"
)

func seedBoard(t *testing.T, s *Store) (uuid.UUID, types.Board) {
	t.Helper()

	user, err := s.Users().Create(context.Background(), types.User{
		Email:    "owner@example.com",
		Username: "owner",
		IsActive: true,
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	board, err := s.Boards().Create(context.Background(), types.Board{
		Title:   "Project",
		OwnerID: user.ID,
	})
	if err != nil {
		t.Fatalf("create board: %v", err)
	}
	return user.ID, board
}

func seedLists(t *testing.T, s *Store, boardID uuid.UUID, titles ...string) []types.List {
	t.Helper()

	lists := make([]types.List, 0, len(titles))
	for _, title := range titles {
		list, err := s.Lists().Create(context.Background(), types.List{Title: title, BoardID: boardID})
		if err != nil {
			t.Fatalf("create list %q: %v", title, err)
		}
		lists = append(lists, list)
	}
	return lists
}

func seedCards(t *testing.T, s *Store, listID uuid.UUID, titles ...string) []types.Card {
	t.Helper()

	cards := make([]types.Card, 0, len(titles))
	for _, title := range titles {
		card, err := s.Cards().Create(context.Background(), types.Card{Title: title, ListID: listID})
		if err != nil {
			t.Fatalf("create card %q: %v", title, err)
		}
		cards = append(cards, card)
	}
	return cards
}

func assertListOrder(t *testing.T, s *Store, boardID uuid.UUID, want ...string) {
	t.Helper()

	lists, err := s.Lists().ListByBoard(context.Background(), boardID)
	if err != nil {
		t.Fatalf("list by board: %v", err)
	}
	if len(lists) != len(want) {
		t.Fatalf("expected %d lists, got %d", len(want), len(lists))
	}
	for i, list := range lists {
		if list.Title != want[i] {
			t.Errorf("position %d: expected %q, got %q", i, want[i], list.Title)
		}
		if list.Position != i {
			t.Errorf("list %q: expected position %d, got %d", list.Title, i, list.Position)
		}
	}
}

func assertCardOrder(t *testing.T, s *Store, listID uuid.UUID, want ...string) {
	t.Helper()

	cards, err := s.Cards().ListByList(context.Background(), listID)
	if err != nil {
		t.Fatalf("list cards: %v", err)
	}
	if len(cards) != len(want) {
		t.Fatalf("expected %d cards, got %d", len(want), len(cards))
	}
	for i, card := range cards {
		if card.Title != want[i] {
			t.Errorf("position %d: expected %q, got %q", i, want[i], card.Title)
		}
		if card.Position != i {
			t.Errorf("card %q: expected position %d, got %d", card.Title, i, card.Position)
		}
	}
}

func TestListCreateAppendsPositions(t *testing.T) {
	s := New()
	_, board := seedBoard(t, s)

	seedLists(t, s, board.ID, "Todo", "Doing", "Done")
	assertListOrder(t, s, board.ID, "Todo", "Doing", "Done")
}

func TestListReorderTowardFront(t *testing.T) {
	s := New()
	_, board := seedBoard(t, s)
	lists := seedLists(t, s, board.ID, "L0", "L1", "L2")

	moved, err := s.Lists().Reorder(context.Background(), lists[2].ID, 0)
	if err != nil {
		t.Fatalf("reorder: %v", err)
	}
	if moved.Position != 0 {
		t.Fatalf("expected position 0, got %d", moved.Position)
	}
	assertListOrder(t, s, board.ID, "L2", "L0", "L1")
}

func TestListReorderTowardBack(t *testing.T) {
	s := New()
	_, board := seedBoard(t, s)
	lists := seedLists(t, s, board.ID, "L0", "L1", "L2")

	if _, err := s.Lists().Reorder(context.Background(), lists[0].ID, 2); err != nil {
		t.Fatalf("reorder: %v", err)
	}
	assertListOrder(t, s, board.ID, "L1", "L2", "L0")
}

func TestListReorderClampsOutOfRange(t *testing.T) {
	s := New()
	_, board := seedBoard(t, s)
	lists := seedLists(t, s, board.ID, "L0", "L1", "L2")

	moved, err := s.Lists().Reorder(context.Background(), lists[0].ID, 99)
	if err != nil {
		t.Fatalf("reorder: %v", err)
	}
	if moved.Position != 2 {
		t.Fatalf("expected clamp to 2, got %d", moved.Position)
	}

	if _, err := s.Lists().Reorder(context.Background(), lists[1].ID, -5); err != nil {
		t.Fatalf("reorder: %v", err)
	}
	assertListOrder(t, s, board.ID, "L1", "L2", "L0")
}

func TestListReorderToCurrentPositionIsNoop(t *testing.T) {
	s := New()
	_, board := seedBoard(t, s)
	lists := seedLists(t, s, board.ID, "L0", "L1", "L2")

	if _, err := s.Lists().Reorder(context.Background(), lists[1].ID, 1); err != nil {
		t.Fatalf("reorder: %v", err)
	}
	assertListOrder(t, s, board.ID, "L0", "L1", "L2")
}

func TestListDeleteCompactsAndCascades(t *testing.T) {
	s := New()
	_, board := seedBoard(t, s)
	lists := seedLists(t, s, board.ID, "L0", "L1", "L2")
	cards := seedCards(t, s, lists[1].ID, "C0", "C1")

	if err := s.Lists().Delete(context.Background(), lists[1].ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	assertListOrder(t, s, board.ID, "L0", "L2")

	for _, card := range cards {
		if _, err := s.Cards().GetByID(context.Background(), card.ID); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("card %q should be gone, got err %v", card.Title, err)
		}
	}
}

func TestCardCreateAppendsPositions(t *testing.T) {
	s := New()
	_, board := seedBoard(t, s)
	lists := seedLists(t, s, board.ID, "Todo")

	seedCards(t, s, lists[0].ID, "C0", "C1", "C2")
	assertCardOrder(t, s, lists[0].ID, "C0", "C1", "C2")
}

func TestCardReorder(t *testing.T) {
	s := New()
	_, board := seedBoard(t, s)
	lists := seedLists(t, s, board.ID, "Todo")
	cards := seedCards(t, s, lists[0].ID, "C0", "C1", "C2", "C3")

	if _, err := s.Cards().Reorder(context.Background(), cards[3].ID, 1); err != nil {
		t.Fatalf("reorder: %v", err)
	}
	assertCardOrder(t, s, lists[0].ID, "C0", "C3", "C1", "C2")

	if _, err := s.Cards().Reorder(context.Background(), cards[0].ID, 3); err != nil {
		t.Fatalf("reorder: %v", err)
	}
	assertCardOrder(t, s, lists[0].ID, "C3", "C1", "C2", "C0")
}

func TestCardDeleteCompactsPositions(t *testing.T) {
	s := New()
	_, board := seedBoard(t, s)
	lists := seedLists(t, s, board.ID, "Todo")
	cards := seedCards(t, s, lists[0].ID, "C0", "C1", "C2")

	if err := s.Cards().Delete(context.Background(), cards[1].ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	assertCardOrder(t, s, lists[0].ID, "C0", "C2")
}

func TestCardMoveAcrossLists(t *testing.T) {
	s := New()
	_, board := seedBoard(t, s)
	lists := seedLists(t, s, board.ID, "Todo", "Doing")
	source := seedCards(t, s, lists[0].ID, "A0", "A1", "A2")
	seedCards(t, s, lists[1].ID, "B0", "B1")

	moved, err := s.Cards().Move(context.Background(), source[1].ID, lists[1].ID, 1)
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if moved.ListID != lists[1].ID || moved.Position != 1 {
		t.Fatalf("expected list %s position 1, got list %s position %d", lists[1].ID, moved.ListID, moved.Position)
	}

	assertCardOrder(t, s, lists[0].ID, "A0", "A2")
	assertCardOrder(t, s, lists[1].ID, "B0", "A1", "B1")
}

func TestCardMoveToTargetFront(t *testing.T) {
	s := New()
	_, board := seedBoard(t, s)
	lists := seedLists(t, s, board.ID, "Todo", "Doing")
	source := seedCards(t, s, lists[0].ID, "A0", "A1", "A2")
	seedCards(t, s, lists[1].ID, "B0", "B1")

	moved, err := s.Cards().Move(context.Background(), source[1].ID, lists[1].ID, 0)
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if moved.Position != 0 {
		t.Fatalf("expected position 0, got %d", moved.Position)
	}
	assertCardOrder(t, s, lists[0].ID, "A0", "A2")
	assertCardOrder(t, s, lists[1].ID, "A1", "B0", "B1")
}

func TestCardMoveClampsToTargetEnd(t *testing.T) {
	s := New()
	_, board := seedBoard(t, s)
	lists := seedLists(t, s, board.ID, "Todo", "Doing")
	source := seedCards(t, s, lists[0].ID, "A0")
	seedCards(t, s, lists[1].ID, "B0", "B1")

	moved, err := s.Cards().Move(context.Background(), source[0].ID, lists[1].ID, 99)
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if moved.Position != 2 {
		t.Fatalf("expected append at position 2, got %d", moved.Position)
	}
	assertCardOrder(t, s, lists[0].ID)
	assertCardOrder(t, s, lists[1].ID, "B0", "B1", "A0")
}

func TestCardMoveIntoEmptyList(t *testing.T) {
	s := New()
	_, board := seedBoard(t, s)
	lists := seedLists(t, s, board.ID, "Todo", "Doing")
	source := seedCards(t, s, lists[0].ID, "A0", "A1")

	moved, err := s.Cards().Move(context.Background(), source[0].ID, lists[1].ID, 0)
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if moved.Position != 0 {
		t.Fatalf("expected position 0, got %d", moved.Position)
	}
	assertCardOrder(t, s, lists[0].ID, "A1")
	assertCardOrder(t, s, lists[1].ID, "A0")
}

func TestCardMoveWithinSameListIsReorder(t *testing.T) {
	s := New()
	_, board := seedBoard(t, s)
	lists := seedLists(t, s, board.ID, "Todo")
	cards := seedCards(t, s, lists[0].ID, "C0", "C1", "C2")

	if _, err := s.Cards().Move(context.Background(), cards[2].ID, lists[0].ID, 0); err != nil {
		t.Fatalf("move: %v", err)
	}
	assertCardOrder(t, s, lists[0].ID, "C2", "C0", "C1")
}

func TestCardMoveRoundTripRestoresOrder(t *testing.T) {
	s := New()
	_, board := seedBoard(t, s)
	lists := seedLists(t, s, board.ID, "Todo", "Doing")
	source := seedCards(t, s, lists[0].ID, "A0", "A1", "A2")
	seedCards(t, s, lists[1].ID, "B0")

	if _, err := s.Cards().Move(context.Background(), source[1].ID, lists[1].ID, 0); err != nil {
		t.Fatalf("move out: %v", err)
	}
	if _, err := s.Cards().Move(context.Background(), source[1].ID, lists[0].ID, 1); err != nil {
		t.Fatalf("move back: %v", err)
	}

	assertCardOrder(t, s, lists[0].ID, "A0", "A1", "A2")
	assertCardOrder(t, s, lists[1].ID, "B0")
}

func TestBoardDeleteCascades(t *testing.T) {
	s := New()
	_, board := seedBoard(t, s)
	lists := seedLists(t, s, board.ID, "Todo", "Doing")
	cards := seedCards(t, s, lists[0].ID, "C0", "C1")

	if err := s.Boards().Delete(context.Background(), board.ID); err != nil {
		t.Fatalf("delete board: %v", err)
	}

	if _, err := s.Boards().GetByID(context.Background(), board.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("board should be gone, got err %v", err)
	}
	for _, list := range lists {
		if _, err := s.Lists().GetByID(context.Background(), list.ID); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("list %q should be gone, got err %v", list.Title, err)
		}
	}
	for _, card := range cards {
		if _, err := s.Cards().GetByID(context.Background(), card.ID); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("card %q should be gone, got err %v", card.Title, err)
		}
	}
}

func TestBoardGetDetailNestsInPositionOrder(t *testing.T) {
	s := New()
	_, board := seedBoard(t, s)
	lists := seedLists(t, s, board.ID, "Todo", "Doing")
	seedCards(t, s, lists[0].ID, "C0", "C1")
	cards := seedCards(t, s, lists[1].ID, "D0")

	if _, err := s.Cards().Reorder(context.Background(), cards[0].ID, 0); err != nil {
		t.Fatalf("reorder: %v", err)
	}

	detail, err := s.Boards().GetDetail(context.Background(), board.ID)
	if err != nil {
		t.Fatalf("get detail: %v", err)
	}
	if len(detail.Lists) != 2 {
		t.Fatalf("expected 2 lists, got %d", len(detail.Lists))
	}
	if detail.Lists[0].Title != "Todo" || detail.Lists[1].Title != "Doing" {
		t.Fatalf("unexpected list order: %q, %q", detail.Lists[0].Title, detail.Lists[1].Title)
	}
	if len(detail.Lists[0].Cards) != 2 || len(detail.Lists[1].Cards) != 1 {
		t.Fatalf("unexpected card counts: %d, %d", len(detail.Lists[0].Cards), len(detail.Lists[1].Cards))
	}
	if detail.Lists[0].Cards[0].Title != "C0" {
		t.Fatalf("expected C0 first, got %q", detail.Lists[0].Cards[0].Title)
	}
}

func TestUserUniqueness(t *testing.T) {
	s := New()

	if _, err := s.Users().Create(context.Background(), types.User{Email: "a@example.com", Username: "alice"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := s.Users().Create(context.Background(), types.User{Email: "a@example.com", Username: "other"}); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict on duplicate email, got %v", err)
	}
	if _, err := s.Users().Create(context.Background(), types.User{Email: "b@example.com", Username: "alice"}); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict on duplicate username, got %v", err)
	}
}
