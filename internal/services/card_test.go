package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/taskboard/apiserver/internal/store"
	"github.com/taskboard/apiserver/internal/store/memory"
	"github.com/taskboard/apiserver/types"
)

type fixture struct {
	store    *memory.Store
	users    *UserService
	boards   *BoardService
	lists    *ListService
	cards    *CardService
	ownerID  uuid.UUID
	otherID  uuid.UUID
	board    types.Board
	todo     types.List
	doing    types.List
	firstTwo []types.Card
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	s := memory.New()
	f := &fixture{
		store:  s,
		users:  NewUserService(s.Users()),
		boards: NewBoardService(s.Boards()),
		lists:  NewListService(s.Lists(), s.Boards()),
		cards:  NewCardService(s.Cards(), s.Lists(), s.Boards(), nil),
	}

	owner, err := f.users.Create(context.Background(), types.User{
		Email: "owner@example.com", Username: "owner", IsActive: true,
	})
	if err != nil {
		t.Fatalf("create owner: %v", err)
	}
	other, err := f.users.Create(context.Background(), types.User{
		Email: "other@example.com", Username: "other", IsActive: true,
	})
	if err != nil {
		t.Fatalf("create other: %v", err)
	}
	f.ownerID = owner.ID
	f.otherID = other.ID

	f.board, err = f.boards.Create(context.Background(), f.ownerID, types.Board{Title: "Project"})
	if err != nil {
		t.Fatalf("create board: %v", err)
	}
	f.todo, err = f.lists.Create(context.Background(), f.ownerID, f.board.ID, types.List{Title: "Todo"})
	if err != nil {
		t.Fatalf("create todo list: %v", err)
	}
	f.doing, err = f.lists.Create(context.Background(), f.ownerID, f.board.ID, types.List{Title: "Doing"})
	if err != nil {
		t.Fatalf("create doing list: %v", err)
	}

	for _, title := range []string{"C0", "C1"} {
		card, err := f.cards.Create(context.Background(), f.ownerID, f.todo.ID, types.Card{Title: title})
		if err != nil {
			t.Fatalf("create card %q: %v", title, err)
		}
		f.firstTwo = append(f.firstTwo, card)
	}
	return f
}

func TestForeignBoardReadsAsMissing(t *testing.T) {
	f := newFixture(t)

	if _, err := f.boards.Get(context.Background(), f.otherID, f.board.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found for foreign board, got %v", err)
	}
	if _, err := f.boards.GetDetail(context.Background(), f.otherID, f.board.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found for foreign board detail, got %v", err)
	}
	if err := f.boards.Delete(context.Background(), f.otherID, f.board.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found deleting foreign board, got %v", err)
	}

	// The owner still sees it untouched.
	if _, err := f.boards.Get(context.Background(), f.ownerID, f.board.ID); err != nil {
		t.Fatalf("owner lost access: %v", err)
	}
}

func TestForeignListReadsAsMissing(t *testing.T) {
	f := newFixture(t)

	if _, err := f.lists.Get(context.Background(), f.otherID, f.todo.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found for foreign list, got %v", err)
	}
	if _, err := f.lists.Reorder(context.Background(), f.otherID, f.todo.ID, 1); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found reordering foreign list, got %v", err)
	}
	if _, err := f.lists.Create(context.Background(), f.otherID, f.board.ID, types.List{Title: "Sneak"}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found creating list on foreign board, got %v", err)
	}
}

func TestForeignCardReadsAsMissing(t *testing.T) {
	f := newFixture(t)
	card := f.firstTwo[0]

	if _, err := f.cards.Get(context.Background(), f.otherID, card.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found for foreign card, got %v", err)
	}
	if _, err := f.cards.Move(context.Background(), f.otherID, card.ID, f.doing.ID, 0); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found moving foreign card, got %v", err)
	}
	if err := f.cards.Delete(context.Background(), f.otherID, card.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found deleting foreign card, got %v", err)
	}
	if _, err := f.cards.Create(context.Background(), f.otherID, f.todo.ID, types.Card{Title: "Sneak"}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found creating card on foreign list, got %v", err)
	}
}

func TestMoveRejectsListOnDifferentBoard(t *testing.T) {
	f := newFixture(t)

	otherBoard, err := f.boards.Create(context.Background(), f.ownerID, types.Board{Title: "Elsewhere"})
	if err != nil {
		t.Fatalf("create board: %v", err)
	}
	foreignList, err := f.lists.Create(context.Background(), f.ownerID, otherBoard.ID, types.List{Title: "Inbox"})
	if err != nil {
		t.Fatalf("create list: %v", err)
	}

	_, err = f.cards.Move(context.Background(), f.ownerID, f.firstTwo[0].ID, foreignList.ID, 0)
	if !errors.Is(err, ErrDifferentBoard) {
		t.Fatalf("expected ErrDifferentBoard, got %v", err)
	}

	// The card must not have moved.
	card, err := f.cards.Get(context.Background(), f.ownerID, f.firstTwo[0].ID)
	if err != nil {
		t.Fatalf("get card: %v", err)
	}
	if card.ListID != f.todo.ID || card.Position != 0 {
		t.Fatalf("card moved unexpectedly: list %s position %d", card.ListID, card.Position)
	}
}

func TestMoveToForeignListReadsAsMissing(t *testing.T) {
	f := newFixture(t)

	theirBoard, err := f.boards.Create(context.Background(), f.otherID, types.Board{Title: "Theirs"})
	if err != nil {
		t.Fatalf("create board: %v", err)
	}
	theirList, err := f.lists.Create(context.Background(), f.otherID, theirBoard.ID, types.List{Title: "Inbox"})
	if err != nil {
		t.Fatalf("create list: %v", err)
	}

	// A target list the caller cannot see must read as missing, never
	// as a cross-board rejection.
	_, err = f.cards.Move(context.Background(), f.ownerID, f.firstTwo[0].ID, theirList.ID, 0)
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found for foreign target list, got %v", err)
	}

	card, err := f.cards.Get(context.Background(), f.ownerID, f.firstTwo[0].ID)
	if err != nil {
		t.Fatalf("get card: %v", err)
	}
	if card.ListID != f.todo.ID {
		t.Fatalf("card moved unexpectedly to list %s", card.ListID)
	}
}

func TestMoveToMissingListReadsAsMissing(t *testing.T) {
	f := newFixture(t)

	_, err := f.cards.Move(context.Background(), f.ownerID, f.firstTwo[0].ID, uuid.New(), 0)
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCardMoveAcrossListsOnSameBoard(t *testing.T) {
	f := newFixture(t)

	moved, err := f.cards.Move(context.Background(), f.ownerID, f.firstTwo[0].ID, f.doing.ID, 0)
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if moved.ListID != f.doing.ID || moved.Position != 0 {
		t.Fatalf("expected doing position 0, got list %s position %d", moved.ListID, moved.Position)
	}

	// The source list compacts behind it.
	remaining, err := f.cards.Get(context.Background(), f.ownerID, f.firstTwo[1].ID)
	if err != nil {
		t.Fatalf("get card: %v", err)
	}
	if remaining.Position != 0 {
		t.Fatalf("expected source list to compact to position 0, got %d", remaining.Position)
	}
}

func TestCardUpdateKeepsPositionAndList(t *testing.T) {
	f := newFixture(t)
	card := f.firstTwo[1]

	priority := types.PriorityHigh
	updated, err := f.cards.Update(context.Background(), f.ownerID, types.Card{
		ID:          card.ID,
		Title:       "Renamed",
		Description: "details",
		Priority:    &priority,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != "Renamed" || updated.Priority == nil || *updated.Priority != types.PriorityHigh {
		t.Fatalf("unexpected update result: %+v", updated)
	}
	if updated.ListID != card.ListID || updated.Position != card.Position {
		t.Fatalf("update must not touch placement: list %s position %d", updated.ListID, updated.Position)
	}
}

func TestBoardListScopedToOwner(t *testing.T) {
	f := newFixture(t)

	mine, err := f.boards.ListByOwner(context.Background(), f.ownerID)
	if err != nil {
		t.Fatalf("list boards: %v", err)
	}
	if len(mine) != 1 {
		t.Fatalf("expected 1 board, got %d", len(mine))
	}

	theirs, err := f.boards.ListByOwner(context.Background(), f.otherID)
	if err != nil {
		t.Fatalf("list boards: %v", err)
	}
	if len(theirs) != 0 {
		t.Fatalf("expected no boards for other user, got %d", len(theirs))
	}
}
