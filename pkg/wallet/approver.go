package wallet

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/wave-portal/pkg/wave"
)

// Request describes what the user is asked to approve.
type Request struct {
	Account         common.Address
	Provider        string
	Reason          string
	NeedsPassphrase bool
}

type Approval struct {
	Passphrase string
}

// Approver asks the user to grant a request. Declining returns an error; the
// Manager reports any approver error as wave.ErrUserRejected.
type Approver interface {
	Approve(ctx context.Context, req Request) (Approval, error)
}

type ApproverFunc func(ctx context.Context, req Request) (Approval, error)

func (f ApproverFunc) Approve(ctx context.Context, req Request) (Approval, error) {
	return f(ctx, req)
}

// StaticApprover grants every request with a fixed passphrase. Used when the
// passphrase comes from the environment.
type StaticApprover struct {
	Passphrase string
}

func (a StaticApprover) Approve(context.Context, Request) (Approval, error) {
	return Approval{Passphrase: a.Passphrase}, nil
}

// TerminalApprover asks on a line-oriented terminal.
type TerminalApprover struct {
	In  io.Reader
	Out io.Writer
	// Passphrase, when set, is used instead of reading one.
	Passphrase string

	r *bufio.Reader
}

func (a *TerminalApprover) Approve(ctx context.Context, req Request) (Approval, error) {
	if a.r == nil {
		a.r = bufio.NewReader(a.In)
	}
	fmt.Fprintf(a.Out, "%s: allow %s (%s)? [y/N] ", req.Reason, req.Account.Hex(), req.Provider)
	answer, err := a.readLine(ctx)
	if err != nil {
		return Approval{}, err
	}
	if ans := strings.ToLower(answer); ans != "y" && ans != "yes" {
		return Approval{}, wave.ErrUserRejected
	}
	if !req.NeedsPassphrase || a.Passphrase != "" {
		return Approval{Passphrase: a.Passphrase}, nil
	}
	fmt.Fprint(a.Out, "passphrase: ")
	pass, err := a.readLine(ctx)
	if err != nil {
		return Approval{}, err
	}
	return Approval{Passphrase: pass}, nil
}

func (a *TerminalApprover) readLine(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	line, err := a.r.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read answer: %w", err)
	}
	return strings.TrimSpace(line), nil
}
