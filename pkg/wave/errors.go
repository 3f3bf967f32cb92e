package wave

import "errors"

var (
	ErrProviderMissing   = errors.New("no wallet provider found")
	ErrUserRejected      = errors.New("user rejected the request")
	ErrReadFailed        = errors.New("chain read failed")
	ErrTransactionFailed = errors.New("transaction failed")
	ErrEmptyMessage      = errors.New("message is empty")
	// ErrBusy is returned when a wave is submitted while another is still being mined.
	ErrBusy = errors.New("a wave is already being mined")
)

// Kind names the error class for logs and API responses. Unknown errors map to "internal".
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrProviderMissing):
		return "provider_missing"
	case errors.Is(err, ErrUserRejected):
		return "user_rejected"
	case errors.Is(err, ErrReadFailed):
		return "read_error"
	case errors.Is(err, ErrTransactionFailed):
		return "transaction_error"
	case errors.Is(err, ErrEmptyMessage):
		return "empty_message"
	case errors.Is(err, ErrBusy):
		return "busy"
	default:
		return "internal"
	}
}

// Notice is the user-facing text for an error.
func Notice(err error) string {
	switch Kind(err) {
	case "":
		return ""
	case "provider_missing":
		return "Get a wallet! Set KEYSTORE_DIR or WALLET_PRIVATE_KEY."
	case "user_rejected":
		return "Connection request was rejected."
	case "read_error":
		return "Could not reach the node, showing the last known feed."
	case "transaction_error":
		return "Wave transaction failed: " + err.Error()
	case "empty_message":
		return "Please add a message."
	case "busy":
		return "Hang on, your last wave is still being mined."
	default:
		return err.Error()
	}
}
