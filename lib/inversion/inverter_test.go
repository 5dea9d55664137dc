package inversion

import (
	"context"
	"errors"
	"github.com/kpaschen/crosswell/lib/settings"
	"github.com/kpaschen/crosswell/lib/svd"
	"gonum.org/v1/gonum/mat"
	"math"
	"math/rand"
	"testing"
)

func randomOperator(rows, columns int, seed int64) *mat.Dense {
	rnd := rand.New(rand.NewSource(seed))
	data := make([]float64, rows*columns)
	for i := range data {
		data[i] = rnd.NormFloat64()
	}
	return mat.NewDense(rows, columns, data)
}

func identity(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1.0)
	}
	return m
}

func mustDecompose(t *testing.T, g mat.Matrix) *svd.Decomposition {
	dec, err := svd.Decompose(g)
	if err != nil {
		t.Fatalf("unexpected error decomposing operator: %v", err)
	}
	return dec
}

func TestIdentityOperatorRecoversData(t *testing.T) {
	g := identity(4)
	d := mat.NewVecDense(4, []float64{1, 2, 3, 4})
	dec := mustDecompose(t, g)

	pinv, err := TruncatedPseudoInverse(dec, 4, dec.Floor(0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	grid := Grid{Rows: 2, Columns: 2}
	model, err := RecoverModel(pinv, d, grid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	if !mat.EqualApprox(model, expected, 1e-12) {
		t.Errorf("expected identity operator to recover %v but got %v", mat.Formatted(expected), mat.Formatted(model))
	}

	r, err := ResolutionMatrix(pinv, g)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !mat.EqualApprox(r, identity(4), 1e-12) {
		t.Errorf("expected identity resolution matrix but got %v", mat.Formatted(r))
	}
	diag, err := ResolutionDiagonal(r, grid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !mat.EqualApprox(diag, mat.NewDense(2, 2, []float64{1, 1, 1, 1}), 1e-12) {
		t.Errorf("expected all ones on the resolution diagonal but got %v", mat.Formatted(diag))
	}
}

func TestFullRankIsMoorePenrose(t *testing.T) {
	g := randomOperator(12, 9, 11)
	dec := mustDecompose(t, g)
	pinv, err := TruncatedPseudoInverse(dec, dec.Rank(), dec.Floor(0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// For a full column rank g, the pseudo-inverse is (G^T G)^-1 G^T.
	var gtg, gtgInv, expected mat.Dense
	gtg.Mul(g.T(), g)
	if err := gtgInv.Inverse(&gtg); err != nil {
		t.Fatalf("G^T G is not invertible: %v", err)
	}
	expected.Mul(&gtgInv, g.T())
	if !mat.EqualApprox(pinv, &expected, 1e-9) {
		t.Errorf("full rank truncated inverse differs from the normal equations inverse")
	}

	// Penrose condition G P G = G.
	var gp, gpg mat.Dense
	gp.Mul(g, pinv)
	gpg.Mul(&gp, g)
	if !mat.EqualApprox(&gpg, g, 1e-9) {
		t.Errorf("G P G does not reproduce G")
	}

	r, err := ResolutionMatrix(pinv, g)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !mat.EqualApprox(r, identity(9), 1e-9) {
		t.Errorf("expected identity resolution at full rank")
	}
}

func TestInvalidRank(t *testing.T) {
	dec := mustDecompose(t, randomOperator(6, 4, 5))
	for _, k := range []int{0, -2, 5, 100} {
		_, err := TruncatedPseudoInverse(dec, k, dec.Floor(0))
		if !errors.Is(err, svd.ErrInvalidRank) {
			t.Errorf("expected invalid rank error for k=%d but got %v", k, err)
		}
		var rankErr svd.InvalidRankError
		if errors.As(err, &rankErr) && rankErr.Max != 4 {
			t.Errorf("expected max rank 4 but got %d", rankErr.Max)
		}
	}
}

func TestSingularTruncation(t *testing.T) {
	g := mat.NewDense(4, 4, nil)
	g.Set(0, 0, 3)
	g.Set(1, 1, 2)
	g.Set(2, 2, 1)
	// g[3][3] stays 0, so the last singular value is exactly zero.
	dec := mustDecompose(t, g)

	_, err := TruncatedPseudoInverse(dec, 4, dec.Floor(0))
	if !errors.Is(err, svd.ErrSingularTruncation) {
		t.Fatalf("expected singular truncation error but got %v", err)
	}
	var singularErr svd.SingularTruncationError
	if !errors.As(err, &singularErr) {
		t.Fatalf("expected a SingularTruncationError but got %T", err)
	}
	if singularErr.Index != 3 || singularErr.K != 4 {
		t.Errorf("expected the fourth singular value to be reported but got %+v", singularErr)
	}

	pinv, err := TruncatedPseudoInverse(dec, 3, dec.Floor(0))
	if err != nil {
		t.Fatalf("rank 3 avoids the zero singular value, unexpected error %v", err)
	}
	if !mat.EqualApprox(mat.NewDiagDense(4, []float64{1.0 / 3, 0.5, 1, 0}), pinv, 1e-12) {
		t.Errorf("unexpected rank 3 inverse %v", mat.Formatted(pinv))
	}

	// An absolute floor above the third singular value rejects rank 3 too.
	_, err = TruncatedPseudoInverse(dec, 3, dec.Floor(1.5))
	if !errors.Is(err, svd.ErrSingularTruncation) {
		t.Errorf("expected singular truncation error with floor 1.5 but got %v", err)
	}
}

func TestRecoverModelIsIdempotent(t *testing.T) {
	g := randomOperator(20, 16, 2)
	d := mat.NewVecDense(20, mat.Col(nil, 0, randomOperator(20, 1, 3)))
	dec := mustDecompose(t, g)
	pinv, err := TruncatedPseudoInverse(dec, 10, dec.Floor(0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	grid := Grid{Rows: 4, Columns: 4}
	first, err := RecoverModel(pinv, d, grid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := RecoverModel(pinv, d, grid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !mat.Equal(first, second) {
		t.Errorf("recovering the same model twice gave different results")
	}
}

func TestShapeMismatch(t *testing.T) {
	g := randomOperator(10, 8, 4)
	dec := mustDecompose(t, g)
	pinv, err := TruncatedPseudoInverse(dec, 8, dec.Floor(0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = RecoverModel(pinv, mat.NewVecDense(9, nil), Grid{Rows: 2, Columns: 4})
	if !errors.Is(err, svd.ErrShapeMismatch) {
		t.Errorf("expected shape mismatch for short data vector but got %v", err)
	}
	// 8 model parameters do not fit a 16x16 grid.
	_, err = RecoverModel(pinv, mat.NewVecDense(10, nil), Grid{Rows: 16, Columns: 16})
	if !errors.Is(err, svd.ErrShapeMismatch) {
		t.Errorf("expected shape mismatch for wrong grid but got %v", err)
	}
	_, err = ResolutionMatrix(pinv, randomOperator(9, 8, 1))
	if !errors.Is(err, svd.ErrShapeMismatch) {
		t.Errorf("expected shape mismatch for wrong operator but got %v", err)
	}

	_, err = NewProblem(g, mat.NewVecDense(7, nil))
	if !errors.Is(err, svd.ErrShapeMismatch) {
		t.Errorf("expected shape mismatch from NewProblem but got %v", err)
	}
}

func TestNewProblemRejectsNonFiniteData(t *testing.T) {
	d := mat.NewVecDense(3, []float64{1, math.Inf(1), 2})
	_, err := NewProblem(randomOperator(3, 3, 1), d)
	if !errors.Is(err, svd.ErrInvalidInput) {
		t.Errorf("expected invalid input but got %v", err)
	}
}

// productionProblem builds an m x 256 problem like the crosswell one.
func productionProblem(t *testing.T, rows int) *Problem {
	g := randomOperator(rows, 256, 42)
	trueModel := mat.NewVecDense(256, mat.Col(nil, 0, randomOperator(256, 1, 43)))
	var d mat.VecDense
	d.MulVec(g, trueModel)
	p, err := NewProblem(g, &d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return p
}

func TestRunProductionShape(t *testing.T) {
	p := productionProblem(t, 300)
	inv := NewInverter(p, settings.InversionSettings{Resolution: true})

	results, err := inv.Run(context.Background(), []int{5, 250})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results but got %d", len(results))
	}
	if results[0].K != 5 || results[1].K != 250 {
		t.Errorf("expected results for ranks 5 and 250 in order but got %d, %d", results[0].K, results[1].K)
	}
	for _, r := range results {
		rows, columns := r.Model.Dims()
		if rows != 16 || columns != 16 {
			t.Errorf("expected a 16x16 model for rank %d but got %dx%d", r.K, rows, columns)
		}
		if r.ResolutionDiagonal == nil {
			t.Fatalf("missing resolution diagonal for rank %d", r.K)
		}
		if r.ResolutionMatrix != nil {
			t.Errorf("resolution matrix should only be kept on request")
		}
		// R_k is a rank k projection, so its trace is k.
		mean := r.MeanResolution()
		if math.Abs(mean-float64(r.K)/256.0) > 1e-8 {
			t.Errorf("expected mean resolution %f for rank %d but got %f", float64(r.K)/256.0, r.K, mean)
		}
	}
	if math.Abs(1-results[1].MeanResolution()) >= math.Abs(1-results[0].MeanResolution()) {
		t.Errorf("rank 250 should resolve better than rank 5: %f vs %f",
			results[1].MeanResolution(), results[0].MeanResolution())
	}
	if results[1].ResidualNorm >= results[0].ResidualNorm {
		t.Errorf("more singular values should fit the data better: %f vs %f",
			results[1].ResidualNorm, results[0].ResidualNorm)
	}
}

func TestRunKeepsResolutionMatrix(t *testing.T) {
	p := productionProblem(t, 260)
	inv := NewInverter(p, settings.InversionSettings{KeepResolutionMatrix: true})
	results, err := inv.Run(context.Background(), []int{256})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results[0].ResolutionMatrix == nil {
		t.Fatalf("expected the resolution matrix to be kept")
	}
	if !mat.EqualApprox(results[0].ResolutionMatrix, identity(256), 1e-8) {
		t.Errorf("expected identity resolution at full rank")
	}
}

func TestRunWithoutResolution(t *testing.T) {
	p := productionProblem(t, 280)
	inv := NewInverter(p, settings.InversionSettings{})
	results, err := inv.Run(context.Background(), []int{50})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results[0].ResolutionDiagonal != nil || results[0].ResolutionMatrix != nil {
		t.Errorf("resolution diagnostics should be off by default")
	}
}

func TestRunFailsFast(t *testing.T) {
	p := productionProblem(t, 270)
	for _, parallelism := range []int{1, 4} {
		inv := NewInverter(p, settings.InversionSettings{Parallelism: parallelism})
		results, err := inv.Run(context.Background(), []int{5, 300, 50})
		if !errors.Is(err, svd.ErrInvalidRank) {
			t.Errorf("parallelism %d: expected invalid rank error but got %v", parallelism, err)
		}
		if results != nil {
			t.Errorf("parallelism %d: expected no partial results but got %d", parallelism, len(results))
		}
	}
}

func TestRunSkipsInvalidRanks(t *testing.T) {
	p := productionProblem(t, 270)
	for _, parallelism := range []int{1, 3} {
		inv := NewInverter(p, settings.InversionSettings{SkipInvalidRanks: true, Parallelism: parallelism})
		results, err := inv.Run(context.Background(), []int{0, 5, 300, 50})
		if err != nil {
			t.Fatalf("parallelism %d: unexpected error: %v", parallelism, err)
		}
		if len(results) != 2 || results[0].K != 5 || results[1].K != 50 {
			t.Errorf("parallelism %d: expected ranks 5 and 50 to survive", parallelism)
		}
	}
}

func TestParallelMatchesSequential(t *testing.T) {
	p := productionProblem(t, 300)
	ranks := []int{200, 5, 100, 50, 150, 250}

	sequential, err := NewInverter(p, settings.InversionSettings{Resolution: true}).Run(context.Background(), ranks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	parallel, err := NewInverter(p, settings.InversionSettings{Resolution: true, Parallelism: 4}).Run(context.Background(), ranks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(parallel) != len(sequential) {
		t.Fatalf("result count mismatch %d vs %d", len(parallel), len(sequential))
	}
	for i := range ranks {
		if parallel[i].K != ranks[i] || sequential[i].K != ranks[i] {
			t.Errorf("result %d is for the wrong rank", i)
		}
		if !mat.Equal(parallel[i].Model, sequential[i].Model) {
			t.Errorf("model mismatch for rank %d", ranks[i])
		}
		if !mat.Equal(parallel[i].ResolutionDiagonal, sequential[i].ResolutionDiagonal) {
			t.Errorf("resolution mismatch for rank %d", ranks[i])
		}
	}
}

func TestRunHonoursCancellation(t *testing.T) {
	p := productionProblem(t, 260)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewInverter(p, settings.InversionSettings{}).Run(ctx, []int{5})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled but got %v", err)
	}
}
