package checkout

import (
	"net/url"
	"strconv"
	"strings"
)

// SessionIDPlaceholder is substituted by the processor on redirect.
const SessionIDPlaceholder = "{CHECKOUT_SESSION_ID}"

type returnURLs struct {
	success string
	cancel  string
}

func (s *Service) origin(requested string) string {
	o := strings.TrimRight(strings.TrimSpace(requested), "/")
	if o == "" {
		return s.BaseURL
	}
	u, err := url.Parse(o)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return s.BaseURL
	}
	return u.Scheme + "://" + u.Host
}

func bookingURLs(origin string) returnURLs {
	return returnURLs{
		success: origin + "/booking/success?session_id=" + SessionIDPlaceholder,
		cancel:  origin + "/events",
	}
}

func orderURLs(origin string) returnURLs {
	return returnURLs{
		success: origin + "/order-success?session_id=" + SessionIDPlaceholder,
		cancel:  origin + "/shop",
	}
}

func albumURLs(origin, slug string) returnURLs {
	return returnURLs{
		success: origin + "/album-success?session_id=" + SessionIDPlaceholder,
		cancel:  origin + "/" + slug,
	}
}

func trackURLs(origin, slug string, trackID int) returnURLs {
	return returnURLs{
		success: origin + "/track-success?session_id=" + SessionIDPlaceholder + "&track_id=" + strconv.Itoa(trackID),
		cancel:  origin + "/" + slug,
	}
}
