package strategies

import (
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/probelab/STRATA/internal/optimization"
)

func init() {
	register(KindCMAES, func(spec Spec, space *optimization.Space) (optimization.Strategy, error) {
		return NewCMAES(space, spec.Seed, spec.Sigma, spec.MaxEvals)
	})
}

// sigmaTol stops the search once the step size has collapsed.
const sigmaTol = 1e-12

// CMAES is a derivative-free covariance-adaptation strategy. Candidates are
// sampled from a multivariate normal whose mean, step size and covariance
// adapt after every full generation of tells. Numeric-only.
type CMAES struct {
	params []optimization.Parameter
	space  *optimization.Space
	dim    int
	rng    *rand.Rand

	lambda  int
	mu      int
	weights []float64
	muEff   float64
	cc      float64
	cs      float64
	c1      float64
	cmu     float64
	damps   float64
	chiN    float64

	mean  []float64
	sigma float64
	cov   *mat.SymDense
	pc    []float64
	ps    []float64
	gens  int

	chol   mat.Cholesky
	cholOK bool

	genVecs [][]float64
	genObjs []float64

	maxEvals int
	hist     *optimization.History
	done     bool
}

// NewCMAES creates a CMA-ES strategy. sigma0 of zero selects a third of the
// mean bound span; maxEvals of zero means no self-imposed cap. The space
// must be purely numeric.
func NewCMAES(space *optimization.Space, seed int64, sigma0 float64, maxEvals int) (*CMAES, error) {
	if space == nil {
		return nil, optimization.NewValidationError("", "cmaes strategy requires a parameter space")
	}
	if !space.IsNumeric() {
		return nil, optimization.NewValidationError("", "cmaes is numeric-only and cannot run over a space with categorical parameters")
	}

	params := space.Parameters()
	dim := len(params)
	n := float64(dim)

	mean := make([]float64, dim)
	spanSum := 0.0
	for i, p := range params {
		mean[i] = (p.Bounds.Low + p.Bounds.High) / 2
		spanSum += p.Bounds.High - p.Bounds.Low
	}
	if sigma0 <= 0 {
		sigma0 = spanSum / n / 3
	}

	// Standard (mu/mu_w, lambda) parameterization.
	lambda := 4 + int(3*math.Log(n))
	mu := lambda / 2
	weights := make([]float64, mu)
	sum := 0.0
	for i := range weights {
		weights[i] = math.Log(float64(mu)+0.5) - math.Log(float64(i+1))
		sum += weights[i]
	}
	sumSq := 0.0
	for i := range weights {
		weights[i] /= sum
		sumSq += weights[i] * weights[i]
	}
	muEff := 1 / sumSq

	cc := (4 + muEff/n) / (n + 4 + 2*muEff/n)
	cs := (muEff + 2) / (n + muEff + 5)
	c1 := 2 / ((n+1.3)*(n+1.3) + muEff)
	cmu := math.Min(1-c1, 2*(muEff-2+1/muEff)/((n+2)*(n+2)+muEff))
	damps := 1 + 2*math.Max(0, math.Sqrt((muEff-1)/(n+1))-1) + cs
	chiN := math.Sqrt(n) * (1 - 1/(4*n) + 1/(21*n*n))

	cov := mat.NewSymDense(dim, nil)
	for i := 0; i < dim; i++ {
		cov.SetSym(i, i, 1)
	}

	s := &CMAES{
		params:   params,
		space:    space,
		dim:      dim,
		rng:      rand.New(rand.NewSource(seed)),
		lambda:   lambda,
		mu:       mu,
		weights:  weights,
		muEff:    muEff,
		cc:       cc,
		cs:       cs,
		c1:       c1,
		cmu:      cmu,
		damps:    damps,
		chiN:     chiN,
		mean:     mean,
		sigma:    sigma0,
		cov:      cov,
		pc:       make([]float64, dim),
		ps:       make([]float64, dim),
		maxEvals: maxEvals,
		hist:     optimization.NewHistory(),
	}
	s.refactorize()
	return s, nil
}

// Ask samples one candidate from the current search distribution, clipped
// into the declared bounds.
func (s *CMAES) Ask() (optimization.Candidate, error) {
	if !s.cholOK {
		s.resetCovariance()
	}
	l := mat.NewTriDense(s.dim, mat.Lower, nil)
	s.chol.LTo(l)

	z := mat.NewVecDense(s.dim, nil)
	for i := 0; i < s.dim; i++ {
		z.SetVec(i, s.rng.NormFloat64())
	}
	y := mat.NewVecDense(s.dim, nil)
	y.MulVec(l, z)

	vec := make([]float64, s.dim)
	for i, p := range s.params {
		x := s.mean[i] + s.sigma*y.AtVec(i)
		vec[i] = math.Max(p.Bounds.Low, math.Min(x, p.Bounds.High))
	}
	theta, err := s.space.Decode(vec)
	if err != nil {
		return optimization.Candidate{}, err
	}
	return optimization.Candidate{Theta: theta, Vector: vec}, nil
}

// Tell records the result; after a full generation of lambda results the
// mean, evolution paths, covariance and step size are updated.
func (s *CMAES) Tell(result optimization.EvalResult) error {
	vec, err := s.space.Encode(result.Theta)
	if err != nil {
		return err
	}
	s.genVecs = append(s.genVecs, vec)
	s.genObjs = append(s.genObjs, result.Objective)
	s.hist.Append(result)

	if len(s.genVecs) >= s.lambda {
		s.update()
	}
	if s.maxEvals > 0 && s.hist.Len() >= s.maxEvals {
		s.done = true
	}
	if s.sigma < sigmaTol {
		s.done = true
	}
	return nil
}

// Converged reports whether the step size collapsed or the cap was reached.
func (s *CMAES) Converged() bool { return s.done }

// History returns everything told to this strategy.
func (s *CMAES) History() *optimization.History { return s.hist }

func (s *CMAES) update() {
	order := make([]int, len(s.genObjs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return s.genObjs[order[a]] < s.genObjs[order[b]]
	})

	oldMean := append([]float64(nil), s.mean...)
	for i := range s.mean {
		s.mean[i] = 0
	}
	for rank := 0; rank < s.mu; rank++ {
		floats.AddScaled(s.mean, s.weights[rank], s.genVecs[order[rank]])
	}

	yw := make([]float64, s.dim)
	for i := range yw {
		yw[i] = (s.mean[i] - oldMean[i]) / s.sigma
	}

	// Whiten the mean shift via the Cholesky factor before the step-size
	// path update.
	l := mat.NewTriDense(s.dim, mat.Lower, nil)
	s.chol.LTo(l)
	white := mat.NewVecDense(s.dim, nil)
	if err := white.SolveVec(l, mat.NewVecDense(s.dim, append([]float64(nil), yw...))); err != nil {
		white = mat.NewVecDense(s.dim, append([]float64(nil), yw...))
	}

	csFac := math.Sqrt(s.cs * (2 - s.cs) * s.muEff)
	for i := range s.ps {
		s.ps[i] = (1-s.cs)*s.ps[i] + csFac*white.AtVec(i)
	}

	s.gens++
	psNorm := floats.Norm(s.ps, 2)
	hsig := 0.0
	expected := math.Sqrt(1-math.Pow(1-s.cs, 2*float64(s.gens))) * s.chiN
	if psNorm/expected < 1.4+2/(float64(s.dim)+1) {
		hsig = 1
	}

	ccFac := math.Sqrt(s.cc * (2 - s.cc) * s.muEff)
	for i := range s.pc {
		s.pc[i] = (1-s.cc)*s.pc[i] + hsig*ccFac*yw[i]
	}

	// Covariance: decay, rank-one from pc, rank-mu from the elite samples.
	decay := (1 - s.c1 - s.cmu) + s.c1*(1-hsig)*s.cc*(2-s.cc)
	s.cov.ScaleSym(decay, s.cov)
	s.cov.SymRankOne(s.cov, s.c1, mat.NewVecDense(s.dim, s.pc))
	for rank := 0; rank < s.mu; rank++ {
		yi := make([]float64, s.dim)
		for i := range yi {
			yi[i] = (s.genVecs[order[rank]][i] - oldMean[i]) / s.sigma
		}
		s.cov.SymRankOne(s.cov, s.cmu*s.weights[rank], mat.NewVecDense(s.dim, yi))
	}

	s.sigma *= math.Exp(s.cs / s.damps * (psNorm/s.chiN - 1))

	s.genVecs = s.genVecs[:0]
	s.genObjs = s.genObjs[:0]
	s.refactorize()
}

func (s *CMAES) refactorize() {
	s.cholOK = s.chol.Factorize(s.cov)
	if !s.cholOK {
		s.resetCovariance()
	}
}

// resetCovariance restarts from an isotropic distribution when the adapted
// covariance loses positive definiteness.
func (s *CMAES) resetCovariance() {
	for i := 0; i < s.dim; i++ {
		for j := 0; j <= i; j++ {
			if i == j {
				s.cov.SetSym(i, j, 1)
			} else {
				s.cov.SetSym(i, j, 0)
			}
		}
	}
	s.cholOK = s.chol.Factorize(s.cov)
}
