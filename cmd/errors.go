package cmd

import (
	"errors"
	"fmt"

	"sibterm/pkg/shellinabox"
)

// renderError turns err into the single line shown after "Error: "
func renderError(err error) string {
	var statusErr *shellinabox.HTTPStatusError
	if errors.As(err, &statusErr) {
		return fmt.Sprintf("HTTP Error %d", statusErr.StatusCode)
	}

	if shellinabox.IsTransportError(err) {
		if cause := shellinabox.RootCause(err); cause != nil && cause.Error() != "" {
			return cause.Error()
		}
		return "Connection Error"
	}

	return err.Error()
}
