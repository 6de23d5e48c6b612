package batch

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"pbr-autowire/internal/autowire"
	"pbr-autowire/internal/graph"
	"pbr-autowire/internal/metrics"
	"pbr-autowire/internal/pbr"
)

func writeDoc(t *testing.T, path string, doc *graph.Document) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, graph.WriteDocument(path, doc))
}

// fixtureDir lays out one document per action plus two broken ones.
func fixtureDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	writeDoc(t, filepath.Join(dir, "floor.json"), &graph.Document{
		Material: "Floor",
		Nodes: []graph.Node{
			{ID: "disney", Type: "LuxCoreNodeMatDisney"},
			{ID: "base", Type: "LuxCoreNodeTexImagemap", Image: "Floor_BaseColor.png"},
			{ID: "rough", Type: "LuxCoreNodeTexImagemap", Image: "Floor_rough.png"},
			{ID: "junk", Type: "LuxCoreNodeTexImagemap", Image: "IMG_001.png"},
		},
	})

	writeDoc(t, filepath.Join(dir, "rock", "rock.json"), &graph.Document{
		Material: "Rock",
		Nodes: []graph.Node{
			{ID: "out", Type: "ShaderNodeOutputMaterial"},
			{ID: "principled", Type: "ShaderNodeBsdfPrincipled", Params: map[string]any{"Metallic": 0.8, "Roughness": 0.5}},
			{ID: "albedo", Type: "ShaderNodeTexImage", Image: "Rock_Albedo.png"},
			{ID: "rough", Type: "ShaderNodeTexImage", Image: "Rock_Roughness.png"},
		},
		Links: []graph.Link{
			{From: graph.Socket{Node: "albedo", Name: "Color"}, To: graph.Socket{Node: "principled", Name: "Base Color"}},
			{From: graph.Socket{Node: "rough", Name: "Color"}, To: graph.Socket{Node: "principled", Name: "Roughness"}},
			{From: graph.Socket{Node: "principled", Name: "BSDF"}, To: graph.Socket{Node: "out", Name: "Surface"}},
		},
	})

	writeDoc(t, filepath.Join(dir, "empty.json"), &graph.Document{Material: "Empty"})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644))
	return dir
}

func TestDiscover(t *testing.T) {
	dir := fixtureDir(t)
	out := filepath.Join(dir, "wired")
	writeDoc(t, filepath.Join(out, "old.json"), &graph.Document{})

	docs, err := Discover(dir, out)
	require.NoError(t, err)
	assert.Equal(t, []string{"broken.json", "empty.json", "floor.json", filepath.Join("rock", "rock.json")}, docs)

	_, err = Discover(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestRun(t *testing.T) {
	defer goleak.VerifyNone(t)
	dir := fixtureDir(t)
	out := t.TempDir()
	docs, err := Discover(dir)
	require.NoError(t, err)

	rec := metrics.NewRecorder()
	cfg := Config{
		InputDir:  dir,
		OutputDir: out,
		Workers:   3,
		Wirer:     autowire.New(nil, nil, rec, nil),
		Metrics:   rec,
	}
	results := Run(context.Background(), cfg, docs)
	require.Len(t, results, 4)

	byDoc := map[string]Result{}
	for i, r := range results {
		assert.Equal(t, docs[i], r.Document, "results keep input order")
		byDoc[r.Document] = r
	}

	assert.Equal(t, StatusFailed, byDoc["broken.json"].Status)
	assert.Equal(t, StatusFailed, byDoc["empty.json"].Status)
	assert.Contains(t, byDoc["empty.json"].Error, ErrNoShader.Error())

	floor := byDoc["floor.json"]
	require.Equal(t, StatusOK, floor.Status, floor.Error)
	assert.Equal(t, "connect", floor.Action)
	assert.Equal(t, "Floor", floor.Material)
	assert.Len(t, floor.Summary.Wired, 2)
	assert.Len(t, floor.Summary.Skipped, 1)

	rock := byDoc[filepath.Join("rock", "rock.json")]
	require.Equal(t, StatusOK, rock.Status, rock.Error)
	assert.Equal(t, "convert", rock.Action)
	assert.Equal(t, filepath.Join(out, "rock", "rock.json"), rock.Output)

	written, err := graph.ReadDocument(rock.Output)
	require.NoError(t, err)
	host, err := graph.LoadMemory(written, nil, nil)
	require.NoError(t, err)
	snap, _ := host.Snapshot()
	target, ok := snap.NodeByName(autowire.ShaderKey)
	require.True(t, ok)
	assert.Equal(t, "LuxCoreNodeMatDisney", target.Type)
	assert.True(t, snap.HasLink(graph.Link{
		From: graph.Socket{Node: "albedo", Name: "Color"},
		To:   graph.Socket{Node: target.ID, Name: "Base Color"},
	}))
	assert.Equal(t, 0.8, target.Params["Metallic"])
	assert.NotContains(t, target.Params, "Roughness", "roughness comes from its texture")
	assert.Equal(t, []string{"Metallic"}, rock.Summary.Transferred)

	assert.Equal(t, 2.0, testutil.ToFloat64(rec.Graphs.WithLabelValues(StatusOK)))
	assert.Equal(t, 2.0, testutil.ToFloat64(rec.Graphs.WithLabelValues(StatusFailed)))
}

func TestRunOutputIsFixedPoint(t *testing.T) {
	dir := fixtureDir(t)
	first, second := t.TempDir(), t.TempDir()
	w := autowire.New(nil, nil, nil, nil)
	docs := []string{"floor.json", filepath.Join("rock", "rock.json")}

	Run(context.Background(), Config{InputDir: dir, OutputDir: first, Wirer: w}, docs)
	results := Run(context.Background(), Config{InputDir: first, OutputDir: second, Wirer: w}, docs)
	for _, r := range results {
		require.Equal(t, StatusOK, r.Status, r.Error)
		assert.Equal(t, "connect", r.Action)
		assert.Zero(t, r.Summary.Applied, "%s changed on the second pass", r.Document)
	}
}

func TestRunCancelled(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results := Run(ctx, Config{Wirer: autowire.New(nil, nil, nil, nil)}, []string{"a.json", "b.json"})
	for _, r := range results {
		assert.Equal(t, StatusFailed, r.Status)
		assert.Equal(t, context.Canceled.Error(), r.Error)
	}
}

func TestWriteManifest(t *testing.T) {
	results := []Result{
		{Document: "a.json", Status: StatusOK, Summary: &autowire.Summary{
			Wired: []autowire.Wired{{Channel: pbr.BaseColor}, {Channel: pbr.Normal}},
		}},
		{Document: "b.json", Status: StatusPartial, Summary: &autowire.Summary{
			Failures: []autowire.FailedOp{{Op: "link t[Color] -> s[Displacement]", Channel: pbr.Height, Error: "unknown socket"}},
		}},
		{Document: "c.json", Status: StatusFailed, Error: "boom"},
	}
	path := filepath.Join(t.TempDir(), "nested", "report.json")
	require.NoError(t, WriteManifest(path, results))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var m Manifest
	require.NoError(t, json.Unmarshal(data, &m))

	assert.Equal(t, 3, m.Documents)
	assert.Equal(t, 1, m.OK)
	assert.Equal(t, 1, m.Partial)
	assert.Equal(t, 1, m.Failed)
	assert.Equal(t, []pbr.Channel{pbr.BaseColor, pbr.Normal}, m.Entries[0].Wired)
	assert.Equal(t, []string{"link t[Color] -> s[Displacement]: unknown socket"}, m.Entries[1].Failures)
	assert.Equal(t, "boom", m.Entries[2].Error)
}
