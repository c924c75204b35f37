package squashfs

import "github.com/sirupsen/logrus"

// log is the package-level structured logger. It is only ever used for
// open-time diagnostics (a superblock summary of compressor, block size and
// inode count, and a message once the image is ready); no call on the
// Stat/ReadDir/Open hot path logs anything.
var log = logrus.WithField("component", "squashfs")
