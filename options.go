package squashfs

import "github.com/sirupsen/logrus"

// Option configures an Image at open time.
type Option func(img *Image) error

// WithLogger overrides the package-level logger used for this Image's
// open-time diagnostics.
func WithLogger(l *logrus.Entry) Option {
	return func(img *Image) error {
		img.log = l
		return nil
	}
}
