package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"
)

const (
	portalDest      = "org.freedesktop.portal.Desktop"
	portalPath      = "/org/freedesktop/portal/desktop"
	screenCastIface = "org.freedesktop.portal.ScreenCast"
	requestIface    = "org.freedesktop.portal.Request"

	portalTimeout = 120 * time.Second // user may need time to pick a screen
)

type pipeWireCapturer struct {
	*streamCapturer
	cancel context.CancelFunc
	cmd    *exec.Cmd
	dbConn *dbus.Conn // kept alive to hold the ScreenCast session
	pwFile *os.File   // PipeWire remote fd from the portal
}

func newPipeWireCapturer(width, height int) (Capturer, string, error) {
	if !hasExecutable("gst-launch-1.0") {
		return nil, "", fmt.Errorf("gst-launch-1.0 not found")
	}

	dbConn, nodeID, pwFile, err := acquirePipeWireNode()
	if err != nil {
		return nil, "", fmt.Errorf("pipewire portal: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	// GStreamer child process inherits pwFile via ExtraFiles.
	// ExtraFiles[0] becomes fd 3 in the child.
	cmd := exec.CommandContext(ctx, "gst-launch-1.0", "-q",
		"pipewiresrc", fmt.Sprintf("path=%d", nodeID), "fd=3",
		"!", "videoconvert",
		"!", "videoscale",
		"!", fmt.Sprintf("video/x-raw,format=RGB,width=%d,height=%d", width, height),
		"!", "fdsink", "fd=1",
	)
	cmd.ExtraFiles = []*os.File{pwFile}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		pwFile.Close()
		dbConn.Close()
		return nil, "", fmt.Errorf("gstreamer stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		cancel()
		pwFile.Close()
		dbConn.Close()
		return nil, "", fmt.Errorf("starting gstreamer: %w", err)
	}

	c := &pipeWireCapturer{
		streamCapturer: newStreamCapturer(width, height),
		cancel:         cancel,
		cmd:            cmd,
		dbConn:         dbConn,
		pwFile:         pwFile,
	}

	go c.readFrames(stdout)

	if err := c.waitFirstFrame(); err != nil {
		_ = c.Close()
		return nil, "", fmt.Errorf("gstreamer: %w", err)
	}

	return c, "PipeWire", nil
}

func (c *pipeWireCapturer) Close() error {
	c.cancel()
	<-c.done
	err := c.cmd.Wait()
	c.pwFile.Close()
	c.dbConn.Close()
	return err
}

// portalSession drives the request/response exchanges of one ScreenCast
// session. Every request gets its own handle token, and its Response signal
// arrives on the request object path derived from it.
type portalSession struct {
	conn   *dbus.Conn
	portal dbus.BusObject
	sender string
}

// request calls a ScreenCast method whose options map is the last argument
// and waits for the portal's Response. A nil options map is created.
func (p *portalSession) request(method, token string, args []any, opts map[string]dbus.Variant) (map[string]dbus.Variant, error) {
	if opts == nil {
		opts = map[string]dbus.Variant{}
	}
	opts["handle_token"] = dbus.MakeVariant(token)
	path := dbus.ObjectPath(fmt.Sprintf("%s/request/%s/%s", portalPath, p.sender, token))

	sigCh := subscribeSignal(p.conn, path)
	defer p.conn.RemoveSignal(sigCh)

	if call := p.portal.Call(screenCastIface+"."+method, 0, append(args, opts)...); call.Err != nil {
		return nil, fmt.Errorf("%s: %w", method, call.Err)
	}
	resp, err := waitForResponse(sigCh, portalTimeout)
	if err != nil {
		return nil, fmt.Errorf("%s response: %w", method, err)
	}
	return resp, nil
}

// acquirePipeWireNode negotiates a ScreenCast session via the XDG Desktop Portal
// and returns the D-Bus connection (must stay open), the PipeWire node ID,
// and a PipeWire remote file descriptor for GStreamer.
func acquirePipeWireNode() (conn *dbus.Conn, nodeID uint32, pwFile *os.File, err error) {
	conn, err = dbus.ConnectSessionBus()
	if err != nil {
		return nil, 0, nil, fmt.Errorf("connecting to session bus: %w", err)
	}
	defer func() {
		if err != nil {
			conn.Close()
		}
	}()
	if !conn.SupportsUnixFDs() {
		return nil, 0, nil, fmt.Errorf("D-Bus connection does not support Unix FD passing")
	}

	ps := &portalSession{
		conn:   conn,
		portal: conn.Object(portalDest, dbus.ObjectPath(portalPath)),
		sender: senderToToken(conn.Names()[0]),
	}

	resp, err := ps.request("CreateSession", "ledsync_req_create", nil, map[string]dbus.Variant{
		"session_handle_token": dbus.MakeVariant("ledsync_session"),
	})
	if err != nil {
		return nil, 0, nil, err
	}
	handle, ok := resp["session_handle"]
	if !ok {
		return nil, 0, nil, fmt.Errorf("CreateSession: no session_handle in response")
	}
	handleStr, ok := handle.Value().(string)
	if !ok {
		return nil, 0, nil, fmt.Errorf("CreateSession: unexpected session_handle type %T", handle.Value())
	}
	session := dbus.ObjectPath(handleStr)

	if _, err = ps.request("SelectSources", "ledsync_req_select", []any{session}, map[string]dbus.Variant{
		"types":    dbus.MakeVariant(uint32(1)), // monitors only
		"multiple": dbus.MakeVariant(false),
	}); err != nil {
		return nil, 0, nil, err
	}

	started, err := ps.request("Start", "ledsync_req_start", []any{session, ""}, nil)
	if err != nil {
		return nil, 0, nil, err
	}
	if nodeID, err = extractNodeID(started); err != nil {
		return nil, 0, nil, err
	}

	// The returned fd grants pipewiresrc access to the portal's stream.
	var pwFd dbus.UnixFD
	err = ps.portal.Call(screenCastIface+".OpenPipeWireRemote", 0, session, map[string]dbus.Variant{}).Store(&pwFd)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("OpenPipeWireRemote: %w", err)
	}
	if pwFile = os.NewFile(uintptr(pwFd), "pipewire-remote"); pwFile == nil {
		return nil, 0, nil, fmt.Errorf("invalid PipeWire fd")
	}
	return conn, nodeID, pwFile, nil
}

// subscribeSignal registers a D-Bus signal match for the portal Response signal
// at the given path and returns a channel that receives matching signals.
func subscribeSignal(conn *dbus.Conn, path dbus.ObjectPath) chan *dbus.Signal {
	ch := make(chan *dbus.Signal, 1)
	conn.Signal(ch)
	conn.BusObject().Call("org.freedesktop.DBus.AddMatch", 0,
		fmt.Sprintf("type='signal',interface='%s',member='Response',path='%s'", requestIface, path))
	return ch
}

// waitForResponse waits for a portal Response signal and returns the results map.
// A non-zero response code indicates the user denied or the request failed.
func waitForResponse(ch chan *dbus.Signal, timeout time.Duration) (map[string]dbus.Variant, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	for {
		select {
		case sig := <-ch:
			if sig == nil {
				return nil, fmt.Errorf("signal channel closed")
			}
			if len(sig.Body) < 2 {
				continue
			}
			code, ok := sig.Body[0].(uint32)
			if !ok {
				continue
			}
			if code != 0 {
				return nil, fmt.Errorf("portal request denied (code %d)", code)
			}
			results, ok := sig.Body[1].(map[string]dbus.Variant)
			if !ok {
				return nil, fmt.Errorf("unexpected response type")
			}
			return results, nil
		case <-ctx.Done():
			return nil, fmt.Errorf("timed out waiting for portal response")
		}
	}
}

// senderToToken converts a D-Bus sender name like ":1.42" to "1_42" for use
// in request object paths.
func senderToToken(sender string) string {
	s := strings.TrimPrefix(sender, ":")
	return strings.ReplaceAll(s, ".", "_")
}

// extractNodeID returns the node of the first stream in a Start response.
// streams has signature a(ua{sv}); godbus decodes each struct as a slice.
func extractNodeID(resp map[string]dbus.Variant) (uint32, error) {
	v, ok := resp["streams"]
	if !ok {
		return 0, fmt.Errorf("no streams in Start response")
	}

	var first []any
	switch streams := v.Value().(type) {
	case [][]any:
		if len(streams) > 0 {
			first = streams[0]
		}
	case []any:
		if len(streams) > 0 {
			first, _ = streams[0].([]any)
		}
	default:
		return 0, fmt.Errorf("unexpected streams type: %T", v.Value())
	}
	if len(first) == 0 {
		return 0, fmt.Errorf("no streams returned")
	}
	nodeID, ok := first[0].(uint32)
	if !ok {
		return 0, fmt.Errorf("unexpected node ID type: %T", first[0])
	}
	return nodeID, nil
}
