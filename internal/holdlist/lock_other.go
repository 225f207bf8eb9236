// SPDX-License-Identifier: MPL-2.0

//go:build !linux

package holdlist

// fileLock is a no-op off Linux; the hold list is only meaningful on Arch.
type fileLock struct{}

func acquireLock(string) (*fileLock, error) {
	return &fileLock{}, nil
}

func (l *fileLock) Release() {}
