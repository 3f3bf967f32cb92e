package tui

import (
	"context"

	"github.com/wave-portal/pkg/wallet"
	"github.com/wave-portal/pkg/wave"
)

type prompt struct {
	req   wallet.Request
	reply chan promptReply
}

type promptReply struct {
	passphrase string
	ok         bool
}

// Approver shows wallet requests inside the running program. Approve blocks
// until the user answers.
type Approver struct {
	// Passphrase, when set, is used instead of asking for one.
	Passphrase string

	prompts chan prompt
}

func NewApprover() *Approver {
	return &Approver{prompts: make(chan prompt)}
}

func (a *Approver) Approve(ctx context.Context, req wallet.Request) (wallet.Approval, error) {
	p := prompt{req: req, reply: make(chan promptReply, 1)}
	select {
	case a.prompts <- p:
	case <-ctx.Done():
		return wallet.Approval{}, ctx.Err()
	}
	select {
	case r := <-p.reply:
		if !r.ok {
			return wallet.Approval{}, wave.ErrUserRejected
		}
		return wallet.Approval{Passphrase: r.passphrase}, nil
	case <-ctx.Done():
		return wallet.Approval{}, ctx.Err()
	}
}
