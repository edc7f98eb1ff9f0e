package image

import (
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/xerrors"
)

type PixelDiff struct{}

func NewPixelDiff() *PixelDiff {
	return &PixelDiff{}
}

func (p *PixelDiff) Calculate(baseline []byte, candidate []byte, canvas []byte, width int, height int, options Options) (int, error) {
	size := width * height * 4
	if len(baseline) != size || len(candidate) != size {
		return 0, xerrors.Errorf("buffer lengths %d and %d do not match %dx%d RGBA", len(baseline), len(candidate), width, height)
	}
	if options.Threshold < 0 || options.Threshold > 1 {
		return 0, xerrors.Errorf("threshold %v out of range [0, 1]", options.Threshold)
	}
	if size == 0 {
		return 0, nil
	}

	panels := len(canvas) / size
	if (panels != 1 && panels != 3) || len(canvas) != panels*size {
		return 0, xerrors.Errorf("canvas length %d fits neither %dx%d nor %dx%d RGBA", len(canvas), width, height, width*3, height)
	}

	tolerance := int(options.Threshold * 255)

	// Use GOMAXPROCS instead of runtime.NumCPU() to consider cgroup.
	// https://tip.golang.org/doc/go1.25#container-aware-gomaxprocs
	numWorkers := min(runtime.GOMAXPROCS(0), height)
	rowsPerWorker := height / numWorkers

	var changedPixelCount int64

	var wg sync.WaitGroup
	wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		startY := i * rowsPerWorker
		endY := startY + rowsPerWorker
		if i == numWorkers-1 {
			endY = height
		}

		go func(startY int, endY int) {
			defer wg.Done()
			p.processRows(baseline, candidate, canvas, width, panels, tolerance, startY, endY, &changedPixelCount)
		}(startY, endY)
	}
	wg.Wait()

	return int(changedPixelCount), nil
}

// processRows renders rows [startY, endY). With three panels the row is laid out as
// baseline | diff | candidate.
func (p *PixelDiff) processRows(baseline []byte, candidate []byte, canvas []byte, width int, panels int, tolerance int, startY int, endY int, changedCount *int64) {
	var localChanged int64

	rowStride := width * 4
	canvasStride := rowStride * panels
	diffPanelOffset := 0
	if panels == 3 {
		diffPanelOffset = rowStride
	}

	for y := startY; y < endY; y++ {
		rowStart := y * rowStride
		canvasRowStart := y * canvasStride

		if panels == 3 {
			copy(canvas[canvasRowStart:canvasRowStart+rowStride], baseline[rowStart:rowStart+rowStride])
			copy(canvas[canvasRowStart+2*rowStride:canvasRowStart+3*rowStride], candidate[rowStart:rowStart+rowStride])
		}

		for x := 0; x < width; x++ {
			offset := rowStart + x*4
			diffOffset := canvasRowStart + diffPanelOffset + x*4

			br := baseline[offset]
			bg := baseline[offset+1]
			bb := baseline[offset+2]
			ba := baseline[offset+3]

			cr := candidate[offset]
			cg := candidate[offset+1]
			cb := candidate[offset+2]
			ca := candidate[offset+3]

			if withinTolerance(br, cr, tolerance) && withinTolerance(bg, cg, tolerance) &&
				withinTolerance(bb, cb, tolerance) && withinTolerance(ba, ca, tolerance) {
				canvas[diffOffset] = br
				canvas[diffOffset+1] = bg
				canvas[diffOffset+2] = bb
				canvas[diffOffset+3] = ba
				continue
			}

			dr, dg, db, da := p.getDiffColor(br, bg, bb, cr, cg, cb)
			canvas[diffOffset] = dr
			canvas[diffOffset+1] = dg
			canvas[diffOffset+2] = db
			canvas[diffOffset+3] = da
			localChanged++
		}
	}

	atomic.AddInt64(changedCount, localChanged)
}

func withinTolerance(a uint8, b uint8, tolerance int) bool {
	d := int(a) - int(b)
	if d < 0 {
		d = -d
	}
	return d <= tolerance
}

// getDiffColor paints pixels that got brighter (or kept their brightness) red and pixels
// that got darker blue.
func (p *PixelDiff) getDiffColor(br uint8, bg uint8, bb uint8, cr uint8, cg uint8, cb uint8) (uint8, uint8, uint8, uint8) {
	const (
		redColor  = 255
		blueColor = 255
	)

	baselineBrightness := int(br) + int(bg) + int(bb)
	candidateBrightness := int(cr) + int(cg) + int(cb)

	if candidateBrightness < baselineBrightness {
		return 0, 0, blueColor, 255
	}
	return redColor, 0, 0, 255
}
