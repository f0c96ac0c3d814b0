package dataobjects

import (
	"context"

	"github.com/gbl08ma/sqalx"
)

// OnboardingRecords reads and writes the onboarding completion flag stored in
// the user record, which is the authoritative copy of that flag
type OnboardingRecords struct {
	Node sqalx.Node
}

type onboardedResult struct {
	onboarded bool
	err       error
}

// Onboarded returns whether the user completed onboarding. It returns the
// context's error as soon as ctx is done, even if the database has not answered.
func (o *OnboardingRecords) Onboarded(ctx context.Context, userID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	// buffered so that the lookup can finish after the caller has given up
	resultChan := make(chan onboardedResult, 1)
	go func() {
		user, err := GetUser(o.Node, userID)
		if err != nil {
			resultChan <- onboardedResult{err: err}
			return
		}
		resultChan <- onboardedResult{onboarded: user.SetupComplete}
	}()

	select {
	case result := <-resultChan:
		return result.onboarded, result.err
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// SetOnboarded marks the user as having completed onboarding
func (o *OnboardingRecords) SetOnboarded(ctx context.Context, userID string) error {
	return o.set(ctx, userID, true)
}

// ClearOnboarded marks the user as not having completed onboarding
func (o *OnboardingRecords) ClearOnboarded(ctx context.Context, userID string) error {
	return o.set(ctx, userID, false)
}

func (o *OnboardingRecords) set(ctx context.Context, userID string, complete bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx, err := o.Node.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	user, err := GetUser(tx, userID)
	if err != nil {
		return err
	}
	if err := user.SetSetupComplete(tx, complete); err != nil {
		return err
	}
	return tx.Commit()
}
