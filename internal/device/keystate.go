package device

import (
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// ErrKeysHeld は待機時間内にキーが離されなかった場合のエラー
var ErrKeysHeld = errors.New("keys are still held")

// PressedKeys は指定したデバイスで現在押されているキーを返す
func PressedKeys(path string) ([]int, error) {
	f, err := os.OpenFile(path, syscall.O_RDONLY|syscall.O_NONBLOCK, 0660)
	if err != nil {
		return nil, fmt.Errorf("デバイスファイルを開くのに失敗しました: %w", err)
	}
	defer f.Close()
	return getPressedKeys(f)
}

func getPressedKeys(file *os.File) ([]int, error) {
	const keyMax = 0x2ff

	keyBitsSize := (keyMax / 8) + 1
	keyBits := make([]byte, keyBitsSize)

	_, _, errno := unix.Syscall(
		unix.SYS_IOCTL,
		file.Fd(),
		uintptr(EVIOCGKEY),
		uintptr(unsafe.Pointer(&keyBits[0])),
	)
	if errno != 0 {
		return nil, errno
	}
	return decodeKeyBits(keyBits), nil
}

// decodeKeyBits はEVIOCGKEYのビット列を押下中のキーコードの一覧に変換する
func decodeKeyBits(keyBits []byte) []int {
	var pressed []int
	for keyCode := 0; keyCode < len(keyBits)*8; keyCode++ {
		if keyBits[keyCode/8]&(1<<(keyCode%8)) != 0 {
			pressed = append(pressed, keyCode)
		}
	}
	return pressed
}

// WaitForRelease はすべてのキーが離されるまで待つ
// 押されたままキーボードを専有すると、そのキーの解放が届かず押しっぱなしになるため
func WaitForRelease(path string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		keys, err := PressedKeys(path)
		if err != nil {
			return err
		}
		if len(keys) == 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %v", ErrKeysHeld, keys)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
