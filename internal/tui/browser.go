package tui

import (
	"errors"

	log "github.com/sirupsen/logrus"
	"github.com/skratchdot/open-golang/open"
)

var errNoURL = errors.New("no url to open")

var openURL = open.Run

// openBrowser opens target in the desktop's default browser.
func openBrowser(target string) error {
	if target == "" {
		return errNoURL
	}
	if err := openURL(target); err != nil {
		log.Debugf("open %s in browser: %v", target, err)
		return err
	}
	return nil
}
