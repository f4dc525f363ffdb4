// Package tilenet implements a small recurrent policy/value network over
// grid-shaped game states.
//
// Every tile carries a recurrent hidden vector that is updated from the
// tile's input planes and its previous hidden vector:
//
//	h'[t] = tanh(Wx·log1p(x[t]) + Wh·h[t] + b)
//
// Action logits for the 8 move directions out of tile t are U·h'[t] + c,
// and the state value is mean_t(q·h'[t]) + q0. The same weights are shared
// by all tiles, so a trained network applies to maps of any size.
package tilenet

import (
	"math"
	"math/rand"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"gonum.org/v1/gonum/mat"

	"github.com/timpalpant/go-a3c"
)

// Config specifies the network dimensions.
type Config struct {
	Channels int // Input planes per state.
	Hidden   int // Hidden units per tile.
	Seed     int64
}

// Net implements a3c.Model.
type Net struct {
	cfg    Config
	params []*a3c.Param

	wx, wh, b *a3c.Param
	u, c      *a3c.Param
	q, q0     *a3c.Param

	height, width int
	hidden        *mat.Dense // Tiles x Hidden, nil until InitHidden.
}

// New returns a Net with randomly initialized weights.
func New(cfg Config) *Net {
	rng := rand.New(rand.NewSource(cfg.Seed))
	k, nc := cfg.Hidden, cfg.Channels
	n := &Net{
		cfg: cfg,
		wx:  a3c.NewParam("wx", normal(rng, k*nc, 1/math.Sqrt(float64(nc)))),
		wh:  a3c.NewParam("wh", normal(rng, k*k, 1/math.Sqrt(float64(k)))),
		b:   a3c.NewParam("b", make([]float64, k)),
		u:   a3c.NewParam("u", normal(rng, a3c.NumDirections*k, 0.01)),
		c:   a3c.NewParam("c", make([]float64, a3c.NumDirections)),
		q:   a3c.NewParam("q", normal(rng, k, 1/math.Sqrt(float64(k)))),
		q0:  a3c.NewParam("q0", make([]float64, 1)),
	}

	n.params = []*a3c.Param{n.wx, n.wh, n.b, n.u, n.c, n.q, n.q0}
	return n
}

// Factory returns an a3c.ModelFactory producing networks with the given
// config. Each network is seeded differently. The factory may be called
// concurrently.
func Factory(cfg Config) a3c.ModelFactory {
	seed := atomic.NewInt64(cfg.Seed - 1)
	return func() a3c.Model {
		c := cfg
		c.Seed = seed.Inc()
		return New(c)
	}
}

func normal(rng *rand.Rand, n int, scale float64) []float64 {
	result := make([]float64, n)
	for i := range result {
		result[i] = scale * rng.NormFloat64()
	}

	return result
}

// Params implements a3c.Model.
func (n *Net) Params() []*a3c.Param {
	return n.params
}

// InitHidden implements a3c.Model.
func (n *Net) InitHidden(height, width int) {
	n.height, n.width = height, width
	n.hidden = mat.NewDense(height*width, n.cfg.Hidden, nil)
}

// ResetHidden implements a3c.Model.
func (n *Net) ResetHidden() {
	if n.hidden != nil {
		n.hidden.Zero()
	}
}

// Forward implements a3c.Model.
func (n *Net) Forward(s *a3c.State) (a3c.Output, error) {
	if n.hidden == nil {
		return nil, errors.Wrap(a3c.ErrContract, "forward called before InitHidden")
	}

	if s.Channels != n.cfg.Channels || s.Height != n.height || s.Width != n.width {
		return nil, errors.Wrapf(a3c.ErrContract, "state shape %dx%dx%d does not match network %dx%dx%d",
			s.Channels, s.Height, s.Width, n.cfg.Channels, n.height, n.width)
	}

	nTiles, k := s.NumTiles(), n.cfg.Hidden
	x := mat.NewDense(nTiles, s.Channels, nil)
	for c := 0; c < s.Channels; c++ {
		for t, v := range s.Plane(c) {
			x.Set(t, c, math.Log1p(math.Max(v, 0)))
		}
	}

	hPrev := mat.DenseCopyOf(n.hidden)

	// Hidden pre-activation: X·Wxᵀ + H·Whᵀ + b.
	var a, ah mat.Dense
	a.Mul(x, valueDense(n.wx, k, s.Channels).T())
	ah.Mul(hPrev, valueDense(n.wh, k, k).T())
	a.Add(&a, &ah)
	h := mat.NewDense(nTiles, k, nil)
	h.Apply(func(i, j int, v float64) float64 {
		return math.Tanh(v + n.b.Value[j])
	}, &a)

	var l mat.Dense
	l.Mul(h, valueDense(n.u, a3c.NumDirections, k).T())
	logits := make([]float64, a3c.NumDirections*nTiles)
	for t := 0; t < nTiles; t++ {
		for d := 0; d < a3c.NumDirections; d++ {
			logits[d*nTiles+t] = l.At(t, d) + n.c.Value[d]
		}
	}

	qv := mat.NewVecDense(k, n.q.Value)
	var hq mat.VecDense
	hq.MulVec(h, qv)
	value := mat.Sum(&hq)/float64(nTiles) + n.q0.Value[0]

	n.hidden.Copy(h)
	return &output{
		net:    n,
		x:      x,
		hPrev:  hPrev,
		h:      h,
		value:  value,
		logits: logits,
	}, nil
}

// valueDense views a parameter's values as an r x c matrix.
func valueDense(p *a3c.Param, r, c int) *mat.Dense {
	return mat.NewDense(r, c, p.Value)
}

func gradDense(p *a3c.Param, r, c int) *mat.Dense {
	return mat.NewDense(r, c, p.Grad)
}

// output holds the activations of one forward pass needed for backward.
type output struct {
	net   *Net
	x     *mat.Dense
	hPrev *mat.Dense
	h     *mat.Dense

	value  float64
	logits []float64
}

func (o *output) Value() float64 {
	return o.value
}

func (o *output) Logits() []float64 {
	return o.logits
}

// Backward implements a3c.Output. The hidden state input to the forward
// pass is treated as a constant.
func (o *output) Backward(dValue float64, dLogits []float64) {
	n := o.net
	nTiles, k := o.h.Dims()
	nc := n.cfg.Channels

	dl := mat.NewDense(nTiles, a3c.NumDirections, nil)
	for d := 0; d < a3c.NumDirections; d++ {
		for t := 0; t < nTiles; t++ {
			g := dLogits[d*nTiles+t]
			dl.Set(t, d, g)
			n.c.Grad[d] += g
		}
	}

	// Logit layer.
	var du mat.Dense
	du.Mul(dl.T(), o.h)
	gu := gradDense(n.u, a3c.NumDirections, k)
	gu.Add(gu, &du)

	var dh mat.Dense
	dh.Mul(dl, valueDense(n.u, a3c.NumDirections, k))

	// Value head.
	dvTile := dValue / float64(nTiles)
	n.q0.Grad[0] += dValue
	for t := 0; t < nTiles; t++ {
		for j := 0; j < k; j++ {
			n.q.Grad[j] += dvTile * o.h.At(t, j)
			dh.Set(t, j, dh.At(t, j)+dvTile*n.q.Value[j])
		}
	}

	// Through tanh.
	da := mat.NewDense(nTiles, k, nil)
	da.Apply(func(i, j int, v float64) float64 {
		y := o.h.At(i, j)
		return v * (1 - y*y)
	}, &dh)

	for t := 0; t < nTiles; t++ {
		for j := 0; j < k; j++ {
			n.b.Grad[j] += da.At(t, j)
		}
	}

	var dwx, dwh mat.Dense
	dwx.Mul(da.T(), o.x)
	gwx := gradDense(n.wx, k, nc)
	gwx.Add(gwx, &dwx)

	dwh.Mul(da.T(), o.hPrev)
	gwh := gradDense(n.wh, k, k)
	gwh.Add(gwh, &dwh)
}
