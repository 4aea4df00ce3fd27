package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/flywave/go3d/float64/vec3"
	"github.com/netisu/aeno"
)

// SceneObject is one named mesh inside the scratch scene.
type SceneObject struct {
	Name string
	Mesh *aeno.Mesh
}

// Scene is the scratch area assets are loaded into, transformed in and
// exported from. The pipeline owns exactly one and clears the objects of
// each file before moving to the next, so nothing leaks across files.
type Scene struct {
	objects []*SceneObject
}

func NewScene() *Scene {
	return &Scene{}
}

// Objects returns the objects currently in the scene.
func (s *Scene) Objects() []*SceneObject {
	return s.objects
}

// LoadAsset parses the OBJ file at path into the scene and returns exactly
// the objects it added.
func (s *Scene) LoadAsset(path string) ([]*SceneObject, error) {
	added, err := loadOBJObjects(path)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	s.objects = append(s.objects, added...)
	return added, nil
}

// Combine merges the given objects into a single one named name, replacing
// them in the scene. The merge is a plain geometric union of the triangle
// sets; no per-object history survives it.
func (s *Scene) Combine(objs []*SceneObject, name string) *SceneObject {
	var triangles []*aeno.Triangle
	for _, o := range objs {
		triangles = append(triangles, o.Mesh.Triangles...)
	}
	merged := &SceneObject{Name: name, Mesh: aeno.NewTriangleMesh(triangles)}
	s.Remove(objs)
	s.objects = append(s.objects, merged)
	return merged
}

// Remove drops the given objects from the scene.
func (s *Scene) Remove(objs []*SceneObject) {
	drop := make(map[*SceneObject]bool, len(objs))
	for _, o := range objs {
		drop[o] = true
	}
	kept := s.objects[:0]
	for _, o := range s.objects {
		if !drop[o] {
			kept = append(kept, o)
		}
	}
	s.objects = kept
}

// Clear empties the scene.
func (s *Scene) Clear() {
	s.objects = nil
}

// BoundingBox returns the object's axis-aligned world-space extent.
func (o *SceneObject) BoundingBox() vec3.Box {
	box := o.Mesh.BoundingBox()
	return vec3.Box{
		Min: vec3.T{box.Min.X, box.Min.Y, box.Min.Z},
		Max: vec3.T{box.Max.X, box.Max.Y, box.Max.Z},
	}
}

// ApplyRelativeScale scales the object by the given per-axis factors about
// its bounding box minimum, so the box's origin corner stays put.
func (o *SceneObject) ApplyRelativeScale(factors vec3.T) {
	box := o.Mesh.BoundingBox()
	anchor := box.Min
	scale := func(v aeno.Vector) aeno.Vector {
		return aeno.Vector{
			X: anchor.X + (v.X-anchor.X)*factors[0],
			Y: anchor.Y + (v.Y-anchor.Y)*factors[1],
			Z: anchor.Z + (v.Z-anchor.Z)*factors[2],
		}
	}
	for _, t := range o.Mesh.Triangles {
		t.V1.Position = scale(t.V1.Position)
		t.V2.Position = scale(t.V2.Position)
		t.V3.Position = scale(t.V3.Position)
	}
	// The mesh caches its bounding box; rewrap so the next query sees the
	// new geometry.
	o.Mesh = aeno.NewTriangleMesh(o.Mesh.Triangles)
}

// BakePivot relocates the pivot to the given world-space point, moves the
// object so the pivot sits at the origin and bakes the result into the
// geometry. Running it again with the pivot recomputed from the baked
// geometry is a no-op.
func (o *SceneObject) BakePivot(pivot vec3.T) {
	for _, t := range o.Mesh.Triangles {
		t.V1.Position = translate(t.V1.Position, pivot)
		t.V2.Position = translate(t.V2.Position, pivot)
		t.V3.Position = translate(t.V3.Position, pivot)
	}
	o.Mesh = aeno.NewTriangleMesh(o.Mesh.Triangles)
}

func translate(v aeno.Vector, pivot vec3.T) aeno.Vector {
	return aeno.Vector{X: v.X - pivot[0], Y: v.Y - pivot[1], Z: v.Z - pivot[2]}
}

// loadOBJObjects reads a Wavefront OBJ file, splitting it into one object
// per "o" record. Files without "o" records yield a single object named
// after the file. Faces are fan-triangulated.
func loadOBJObjects(path string) ([]*SceneObject, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	vs := make([]aeno.Vector, 1, 1024)
	vns := make([]aeno.Vector, 1, 256)

	var objects []*SceneObject
	currentName := base
	var current []*aeno.Triangle

	flush := func() {
		if len(current) > 0 {
			objects = append(objects, &SceneObject{
				Name: currentName,
				Mesh: aeno.NewTriangleMesh(current),
			})
			current = nil
		}
	}

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if len(line) < 2 || line[0] == '#' {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "o", "g":
			flush()
			if len(fields) > 1 {
				currentName = fields[1]
			} else {
				currentName = fmt.Sprintf("%s_%d", base, len(objects)+1)
			}
		case "v":
			vs = append(vs, aeno.Vector{X: pf(fields[1]), Y: pf(fields[2]), Z: pf(fields[3])})
		case "vn":
			vns = append(vns, aeno.Vector{X: pf(fields[1]), Y: pf(fields[2]), Z: pf(fields[3])})
		case "f":
			args := fields[1:]
			fvs := make([]int, len(args))
			fvns := make([]int, len(args))
			for i, arg := range args {
				vertex := strings.Split(arg+"//", "/")
				fvs[i] = fixIndex(vertex[0], len(vs))
				fvns[i] = fixIndex(vertex[2], len(vns))
			}
			for i := 1; i < len(fvs)-1; i++ {
				t := &aeno.Triangle{}
				i1, i2, i3 := 0, i, i+1
				t.V1.Position = vs[fvs[i1]]
				t.V2.Position = vs[fvs[i2]]
				t.V3.Position = vs[fvs[i3]]
				if fvns[i1] > 0 {
					t.V1.Normal = vns[fvns[i1]]
					t.V2.Normal = vns[fvns[i2]]
					t.V3.Normal = vns[fvns[i3]]
				}
				t.FixNormals()
				current = append(current, t)
			}
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(objects) == 0 {
		return nil, fmt.Errorf("no geometry found")
	}
	return objects, nil
}

func pf(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

// fixIndex resolves an OBJ index, which may be negative (relative to the
// end) or empty.
func fixIndex(value string, length int) int {
	if value == "" {
		return 0
	}
	parsed, _ := strconv.Atoi(value)
	if parsed < 0 {
		return parsed + length
	}
	return parsed
}

// Export writes the given objects to a single OBJ file. Vertices are
// emitted per triangle, so indices are local and always positive.
func (s *Scene) Export(objs []*SceneObject, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("exporting %s: %w", path, err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	index := 1
	for _, o := range objs {
		fmt.Fprintf(w, "o %s\n", o.Name)
		for _, t := range o.Mesh.Triangles {
			for _, v := range []aeno.Vector{t.V1.Position, t.V2.Position, t.V3.Position} {
				fmt.Fprintf(w, "v %s %s %s\n", ff(v.X), ff(v.Y), ff(v.Z))
			}
			fmt.Fprintf(w, "f %d %d %d\n", index, index+1, index+2)
			index += 3
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("exporting %s: %w", path, err)
	}
	return nil
}

func ff(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
