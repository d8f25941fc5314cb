package app

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"arthea/api/internal/store"
)

func TestCreateRoundRequiresSubject(t *testing.T) {
	service := newTestService(&fakeStore{})

	_, err := service.CreateRound(context.Background(), "   ")
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected DomainError, got %v", err)
	}
	if domainErr.Code != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR, got %s", domainErr.Code)
	}
}

func TestCreateRoundRejectsSecondActiveRound(t *testing.T) {
	service := newTestService(&fakeStore{
		activeRoundFn: func(context.Context, string) (*store.Round, error) {
			return &store.Round{ID: "rnd_existing", Status: "frozen"}, nil
		},
	})

	_, err := service.CreateRound(context.Background(), "proj_1")
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected DomainError, got %v", err)
	}
	if domainErr.Code != "CONFLICT" {
		t.Fatalf("expected CONFLICT, got %s", domainErr.Code)
	}
	details, ok := domainErr.Details.(map[string]any)
	if !ok {
		t.Fatalf("expected details map, got %T", domainErr.Details)
	}
	if details["activeRoundId"] != "rnd_existing" {
		t.Fatalf("expected activeRoundId rnd_existing, got %v", details["activeRoundId"])
	}
}

func TestCreateRoundNumbersFromLatestRegardlessOfStatus(t *testing.T) {
	var inserted store.Round
	service := newTestService(&fakeStore{
		latestRoundFn: func(context.Context, string) (*store.Round, error) {
			return &store.Round{ID: "rnd_old", RoundNumber: 3, Status: "closed"}, nil
		},
		insertRoundFn: func(_ context.Context, round store.Round) error {
			inserted = round
			return nil
		},
	})

	payload, err := service.CreateRound(context.Background(), "proj_1")
	if err != nil {
		t.Fatalf("CreateRound: %v", err)
	}
	if inserted.RoundNumber != 4 {
		t.Fatalf("expected round number 4, got %d", inserted.RoundNumber)
	}
	if inserted.Status != "open" {
		t.Fatalf("expected open status, got %s", inserted.Status)
	}
	if payload["roundNumber"] != 4 {
		t.Fatalf("expected payload roundNumber 4, got %v", payload["roundNumber"])
	}
}

func TestCreateRoundFirstRoundIsNumberOne(t *testing.T) {
	var inserted store.Round
	service := newTestService(&fakeStore{
		insertRoundFn: func(_ context.Context, round store.Round) error {
			inserted = round
			return nil
		},
	})

	if _, err := service.CreateRound(context.Background(), "proj_1"); err != nil {
		t.Fatalf("CreateRound: %v", err)
	}
	if inserted.RoundNumber != 1 {
		t.Fatalf("expected round number 1, got %d", inserted.RoundNumber)
	}
}

func TestFreezeRoundOnlyFromOpen(t *testing.T) {
	service := newTestService(&fakeStore{
		getRoundFn: func(_ context.Context, id string) (store.Round, error) {
			return store.Round{ID: id, Status: "frozen"}, nil
		},
		freezeRoundFn: func(context.Context, string, time.Time) (bool, error) {
			return false, nil
		},
	})

	_, err := service.FreezeRound(context.Background(), "rnd_1")
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected DomainError, got %v", err)
	}
	if domainErr.Code != "INVALID_STATE" {
		t.Fatalf("expected INVALID_STATE, got %s", domainErr.Code)
	}
}

func TestFreezeRoundNotFound(t *testing.T) {
	service := newTestService(&fakeStore{
		getRoundFn: func(context.Context, string) (store.Round, error) {
			return store.Round{}, sql.ErrNoRows
		},
	})

	_, err := service.FreezeRound(context.Background(), "rnd_missing")
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected DomainError, got %v", err)
	}
	if domainErr.Code != "NOT_FOUND" {
		t.Fatalf("expected NOT_FOUND, got %s", domainErr.Code)
	}
}

func TestCloseRoundFromFrozen(t *testing.T) {
	froze := false
	service := newTestService(&fakeStore{
		getRoundFn: func(_ context.Context, id string) (store.Round, error) {
			status := "frozen"
			if froze {
				status = "closed"
			}
			return store.Round{ID: id, Status: status}, nil
		},
		closeRoundFn: func(context.Context, string, time.Time) (bool, error) {
			froze = true
			return true, nil
		},
	})

	payload, err := service.CloseRound(context.Background(), "rnd_1")
	if err != nil {
		t.Fatalf("CloseRound: %v", err)
	}
	if payload["status"] != "closed" {
		t.Fatalf("expected closed, got %v", payload["status"])
	}
}

func TestCloseRoundIsTerminal(t *testing.T) {
	service := newTestService(&fakeStore{
		getRoundFn: func(_ context.Context, id string) (store.Round, error) {
			return store.Round{ID: id, Status: "closed"}, nil
		},
		closeRoundFn: func(context.Context, string, time.Time) (bool, error) {
			return false, nil
		},
	})

	_, err := service.CloseRound(context.Background(), "rnd_1")
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected DomainError, got %v", err)
	}
	if domainErr.Code != "INVALID_STATE" {
		t.Fatalf("expected INVALID_STATE, got %s", domainErr.Code)
	}
}

func TestActiveRoundNilWhenNone(t *testing.T) {
	service := newTestService(&fakeStore{})

	payload, err := service.ActiveRound(context.Background(), "proj_1")
	if err != nil {
		t.Fatalf("ActiveRound: %v", err)
	}
	if payload != nil {
		t.Fatalf("expected nil payload, got %v", payload)
	}
}

func TestRoundStatusSwallowsStorageErrors(t *testing.T) {
	service := newTestService(&fakeStore{
		getRoundFn: func(context.Context, string) (store.Round, error) {
			return store.Round{}, errors.New("connection refused")
		},
	})

	if status := service.RoundStatus(context.Background(), "rnd_1"); status != "" {
		t.Fatalf("expected empty status, got %q", status)
	}
	if service.CanAcceptComments(context.Background(), "rnd_1") {
		t.Fatal("expected CanAcceptComments to be false on storage error")
	}
}
