package a3c

// Step is the record of one environment interaction within a rollout.
type Step struct {
	Value     float64 // Model value estimate of the state acted in.
	LogProb   float64 // Log-probability of the selected action under the raw distribution.
	Entropy   float64 // Entropy of the masked distribution.
	Reward    float64
	OffTarget float64 // Probability mass placed on illegal actions.

	action int
	dist   *ActionDist
	out    Output
}

// Trajectory is the ordered sequence of steps collected in one iteration.
type Trajectory []Step

func (t Trajectory) values() []float64 {
	v := make([]float64, len(t))
	for i, s := range t {
		v[i] = s.Value
	}

	return v
}

func (t Trajectory) rewards() []float64 {
	r := make([]float64, len(t))
	for i, s := range t {
		r[i] = s.Reward
	}

	return r
}

// Advantages are the per-step estimates produced by EstimateAdvantages.
type Advantages struct {
	Returns    []float64 // Discounted bootstrapped returns R_i.
	Advantages []float64 // R_i - V(s_i), used for the value loss.
	GAE        []float64 // Generalized advantage estimates, used for the policy loss.
}

// EstimateAdvantages runs the generalized advantage estimation recursion
// backwards over a rollout with the given value estimates and rewards.
// bootstrap is the value of the state following the last step (zero if the
// episode ended).
//
// All inputs are treated as constants.
func EstimateAdvantages(values, rewards []float64, bootstrap, gamma, tau float64) Advantages {
	n := len(rewards)
	adv := Advantages{
		Returns:    make([]float64, n),
		Advantages: make([]float64, n),
		GAE:        make([]float64, n),
	}

	r := bootstrap
	nextValue := bootstrap
	var gae float64
	for i := n - 1; i >= 0; i-- {
		r = gamma*r + rewards[i]
		adv.Returns[i] = r
		adv.Advantages[i] = r - values[i]

		delta := rewards[i] + gamma*nextValue - values[i]
		gae = gamma*tau*gae + delta
		adv.GAE[i] = gae
		nextValue = values[i]
	}

	return adv
}

// Loss is the scalar training objective for one rollout, broken down into
// its terms.
type Loss struct {
	Policy    float64 // Includes the entropy bonus and off-target penalty.
	Value     float64 // Unweighted value regression loss.
	Total     float64 // Policy + ValueLossCoef * Value.
	Entropy   float64 // Sum of per-step entropies.
	OffTarget float64 // Sum of per-step off-target mass.
}

// ComputeLoss estimates advantages for the trajectory and assembles the
// actor-critic loss.
func ComputeLoss(traj Trajectory, bootstrap float64, p Params) (Loss, Advantages) {
	adv := EstimateAdvantages(traj.values(), traj.rewards(), bootstrap, p.Gamma, p.Tau)

	var loss Loss
	for i := len(traj) - 1; i >= 0; i-- {
		s := traj[i]
		a := adv.Advantages[i]
		loss.Value += 0.5 * a * a
		loss.Policy += -s.LogProb*adv.GAE[i] - p.EntropyCoef*s.Entropy + p.OffTileCoef*s.OffTarget
		loss.Entropy += s.Entropy
		loss.OffTarget += s.OffTarget
	}

	loss.Total = loss.Policy + p.ValueLossCoef*loss.Value
	return loss, adv
}

// Backward propagates the gradient of the loss computed by ComputeLoss
// through the model outputs recorded in each step.
func (t Trajectory) Backward(adv Advantages, p Params) {
	t.backward(nil, adv, p)
}

func (t Trajectory) backward(pool *floatSlicePool, adv Advantages, p Params) {
	for i, s := range t {
		dValue := -p.ValueLossCoef * adv.Advantages[i]
		dLogits := s.dist.logitGrad(pool, s.action, adv.GAE[i], p.EntropyCoef, p.OffTileCoef)
		s.out.Backward(dValue, dLogits)
		pool.free(dLogits)
	}
}

// release returns the distribution buffers of each step to the pool and
// drops references to model outputs once the iteration is over.
func (t Trajectory) release(pool *floatSlicePool) {
	for i := range t {
		if t[i].dist != nil {
			t[i].dist.free(pool)
		}
		t[i].out = nil
		t[i].dist = nil
	}
}
