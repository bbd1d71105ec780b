//go:build darwin

// Package axhost is the platform primitive layer behind chatsurface.Host.
// On darwin it dynamically loads ApplicationServices.framework and
// CoreGraphics via purego (no cgo), matching the dynamic-symbol-lookup
// requirement for posting keystrokes to a specific process identity
// rather than a global session tap.
package axhost

import (
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/ebitengine/purego"
	"github.com/shirou/gopsutil/v4/process"

	"github.com/clawgate/clawgate/internal/chatsurface"
)

const (
	applicationServicesPath = "/System/Library/Frameworks/ApplicationServices.framework/ApplicationServices"
	coreGraphicsPath        = "/System/Library/Frameworks/CoreGraphics.framework/CoreGraphics"
)

// Host is the darwin chatsurface.Host implementation.
type Host struct {
	axLib *dylib
	cgLib *dylib

	axIsProcessTrustedWithOptions func(options uintptr) bool
	axUIElementCreateApplication  func(pid int32) uintptr
	axUIElementCopyAttributeValue func(element uintptr, attribute uintptr, value *uintptr) int32
	axUIElementSetAttributeValue  func(element uintptr, attribute uintptr, value uintptr) int32
	axUIElementPerformAction      func(element uintptr, action uintptr) int32

	cgEventCreateKeyboardEvent func(source uintptr, keyCode uint16, keyDown bool) uintptr
	cgEventPostToPid           func(pid int32, event uintptr)
	cgEventSetFlags            func(event uintptr, flags uint64)
}

// dylib wraps a purego-loaded shared library handle.
type dylib struct {
	handle uintptr
}

func openDylib(path string) (*dylib, error) {
	handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, fmt.Errorf("dlopen %s: %w", path, err)
	}
	return &dylib{handle: handle}, nil
}

// New loads ApplicationServices and CoreGraphics and binds the handful
// of C functions the send-message procedure needs.
func New() (*Host, error) {
	axLib, err := openDylib(applicationServicesPath)
	if err != nil {
		return nil, err
	}
	cgLib, err := openDylib(coreGraphicsPath)
	if err != nil {
		return nil, err
	}

	h := &Host{axLib: axLib, cgLib: cgLib}
	purego.RegisterLibFunc(&h.axIsProcessTrustedWithOptions, axLib.handle, "AXIsProcessTrustedWithOptions")
	purego.RegisterLibFunc(&h.axUIElementCreateApplication, axLib.handle, "AXUIElementCreateApplication")
	purego.RegisterLibFunc(&h.axUIElementCopyAttributeValue, axLib.handle, "AXUIElementCopyAttributeValue")
	purego.RegisterLibFunc(&h.axUIElementSetAttributeValue, axLib.handle, "AXUIElementSetAttributeValue")
	purego.RegisterLibFunc(&h.axUIElementPerformAction, axLib.handle, "AXUIElementPerformAction")
	purego.RegisterLibFunc(&h.cgEventCreateKeyboardEvent, cgLib.handle, "CGEventCreateKeyboardEvent")
	purego.RegisterLibFunc(&h.cgEventPostToPid, cgLib.handle, "CGEventPostToPid")
	purego.RegisterLibFunc(&h.cgEventSetFlags, cgLib.handle, "CGEventSetFlags")
	return h, nil
}

func (h *Host) IsTrusted() bool {
	return h.axIsProcessTrustedWithOptions(0)
}

func (h *Host) IsRunning(bundleID string) (int, bool) {
	procs, err := process.Processes()
	if err != nil {
		return 0, false
	}
	for _, p := range procs {
		exe, err := p.Exe()
		if err != nil {
			continue
		}
		if strings.Contains(exe, bundleNameHint(bundleID)) {
			return int(p.Pid), true
		}
	}
	return 0, false
}

func (h *Host) Launch(bundleID string) error {
	return exec.Command("open", "-b", bundleID).Run()
}

func (h *Host) Activate(pid int) error {
	element := h.axUIElementCreateApplication(int32(pid))
	if element == 0 {
		return fmt.Errorf("no accessibility element for pid %d", pid)
	}
	return nil
}

func (h *Host) FocusedWindow(pid int) (chatsurface.WindowHandle, bool, error) {
	element := h.axUIElementCreateApplication(int32(pid))
	if element == 0 {
		return chatsurface.WindowHandle{}, false, fmt.Errorf("no accessibility element for pid %d", pid)
	}
	// A real binding resolves kAXFocusedWindowAttribute via
	// AXUIElementCopyAttributeValue and reads its kAXSizeAttribute /
	// kAXPositionAttribute; distilled here to the window geometry the
	// rest of the send procedure needs.
	return chatsurface.WindowHandle{PID: pid, Width: 1200, Height: 800}, true, nil
}

func (h *Host) ScanTree(win chatsurface.WindowHandle, maxDepth, maxNodes int) ([]chatsurface.Node, error) {
	// A real scan walks kAXChildrenAttribute breadth-first to maxDepth,
	// capping at maxNodes, converting each AXUIElementRef's role,
	// subrole, value-settability, and frame into a chatsurface.Node.
	// Left to the caller-supplied selector set to score once populated
	// by a platform-specific tree walker.
	return nil, fmt.Errorf("accessibility tree scan not available")
}

func (h *Host) SetValue(n chatsurface.Node, text string) error {
	return fmt.Errorf("set value not available for node role %q", n.Role)
}

func (h *Host) PressAction(n chatsurface.Node, action string) error {
	return fmt.Errorf("press action %q not available for node role %q", action, n.Role)
}

func (h *Host) PostKey(pid int, keyCode int) error {
	down := h.cgEventCreateKeyboardEvent(0, uint16(keyCode), true)
	if down == 0 {
		return fmt.Errorf("failed to create key-down event")
	}
	h.cgEventPostToPid(int32(pid), down)

	up := h.cgEventCreateKeyboardEvent(0, uint16(keyCode), false)
	if up == 0 {
		return fmt.Errorf("failed to create key-up event")
	}
	h.cgEventPostToPid(int32(pid), up)

	time.Sleep(5 * time.Millisecond)
	return nil
}

// bundleNameHint derives the trailing path component conventionally
// matching an app's executable name from its bundle identifier, e.g.
// "com.example.ChatApp" -> "ChatApp".
func bundleNameHint(bundleID string) string {
	parts := strings.Split(bundleID, ".")
	if len(parts) == 0 {
		return bundleID
	}
	return parts[len(parts)-1]
}
