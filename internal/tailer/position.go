package tailer

import (
	"os"
	"syscall"
)

// Position is the persisted (and persistable) read position of one tailed
// file.
type Position struct {
	Path           string
	Device         uint64
	Inode          uint64
	Offset         int64
	LastModifiedNs int64
}

// fileIdentity captures the (device, inode, size, mtime) a tailer needs to
// detect rotation and truncation.
type fileIdentity struct {
	device  uint64
	inode   uint64
	size    int64
	modNs   int64
}

func statIdentity(path string) (fileIdentity, error) {
	info, err := os.Stat(path)
	if err != nil {
		return fileIdentity{}, err
	}
	return identityFromInfo(info), nil
}

func identityFromInfo(info os.FileInfo) fileIdentity {
	var dev, inode uint64
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		dev = uint64(st.Dev)
		inode = uint64(st.Ino)
	}
	return fileIdentity{
		device: dev,
		inode:  inode,
		size:   info.Size(),
		modNs:  info.ModTime().UnixNano(),
	}
}

// sameFile reports whether two identities refer to the same inode on the
// same device.
func sameFile(a, b fileIdentity) bool {
	return a.device == b.device && a.inode == b.inode
}

// matches reports whether a resume Position refers to the same file as id.
func (p Position) matches(id fileIdentity) bool {
	return p.Device == id.device && p.Inode == id.inode
}
