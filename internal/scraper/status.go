package scraper

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"

	"github.com/tariktz/contactminer/internal/model"
)

// classifyFetchError maps a transport error plus HTTP status code to the
// closed ScrapeStatus enum, adapted from
// lukemcguire-vibraphone-template's result.ClassifyError pattern but
// mapped onto an exact, closed status vocabulary so downstream code can
// switch on it without substring probes.
func classifyFetchError(err error, statusCode int) model.ScrapeStatus {
	if statusCode > 0 && statusCode >= 400 {
		return model.HTTPErrorStatus(statusCode)
	}
	if err == nil {
		if statusCode > 0 {
			return model.ScrapeStatusSuccess
		}
		return model.ScrapeStatusPlaywrightError
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return model.ScrapeStatusTimeout
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return model.ScrapeStatusTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return model.ScrapeStatusDNSError
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Timeout() {
			return model.ScrapeStatusTimeout
		}
		if isConnectionRefused(opErr) {
			return model.ScrapeStatusConnectionRefused
		}
	}

	return model.ScrapeStatusPlaywrightError
}

func isConnectionRefused(opErr *net.OpError) bool {
	if opErr.Op != "dial" || opErr.Err == nil {
		return false
	}
	return strings.Contains(opErr.Err.Error(), "connection refused")
}
