package region

import (
	"fmt"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"

	"github.com/bryanchriswhite/screenrec/internal/logger"
)

// displayGeometry queries the X server for the size of the default screen.
// An empty display string falls back to $DISPLAY.
func displayGeometry(display string) (Region, error) {
	log := logger.WithComponent("region")

	conn, err := xgb.NewConnDisplay(display)
	if err != nil {
		return Region{}, fmt.Errorf("%w: connect to X server: %v", ErrGeometryUnavailable, err)
	}
	defer conn.Close()

	screen := xproto.Setup(conn).DefaultScreen(conn)
	if screen.WidthInPixels == 0 || screen.HeightInPixels == 0 {
		return Region{}, fmt.Errorf("%w: X server reported %dx%d screen",
			ErrGeometryUnavailable, screen.WidthInPixels, screen.HeightInPixels)
	}

	r := Region{
		Left:   0,
		Top:    0,
		Width:  int(screen.WidthInPixels),
		Height: int(screen.HeightInPixels),
	}
	log.Debug().Str("geometry", r.String()).Msg("queried display geometry")
	return r, nil
}
