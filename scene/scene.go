package scene

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"github.com/soerenfi/raytracing/asset"
	"github.com/soerenfi/raytracing/gpu"
	"github.com/soerenfi/raytracing/log"
	"github.com/soerenfi/raytracing/types"
)

const lightsExtension = "KHR_lights_punctual"

// Descriptor bindings of the scene set.
const (
	CameraBinding uint32 = iota
	MaterialBinding
	InstanceBinding
	TextureBinding
)

var logger = log.New("scene")

type Material struct {
	Name      string
	BaseColor types.Vec3
	Alpha     float32
	Emissive  types.Vec3
	Metallic  float32
	Roughness float32

	// Alpha masked materials are skipped by any-hit tests.
	AlphaMask   bool
	AlphaCutoff float32
}

// A triangle mesh for a single glTF primitive in object space.
type PrimMesh struct {
	Name      string
	Material  int
	Positions []types.Vec3
	Indices   []uint32
	Bounds    Bounds
}

// A placement of a primitive mesh in the world.
type Instance struct {
	Node      string
	Mesh      int
	Transform types.Mat4
	Bounds    Bounds
}

// Initial camera placement read from the scene file.
type CameraSetup struct {
	Eye    types.Vec3
	Center types.Vec3
	Up     types.Vec3
	FOV    float32
}

// A loaded scene.
type Scene struct {
	name string

	Materials []Material
	Meshes    []PrimMesh
	Instances []Instance

	camera    *CameraSetup
	bounds    Bounds
	stats     Stats
	textures  int
	loadTime  time.Duration
	sceneFile string
}

// Create an empty scene.
func New() *Scene {
	return &Scene{
		name:   "empty",
		bounds: EmptyBounds(),
	}
}

// Load a glTF scene from a local path or an http(s) URL.
func Load(pathToScene string) (*Scene, error) {
	if asset.KindOf(pathToScene) != asset.SceneAsset {
		return nil, fmt.Errorf("scene: %w: %s", asset.ErrUnsupportedAsset, pathToScene)
	}

	start := time.Now()
	res, err := asset.NewResource(pathToScene)
	if err != nil {
		return nil, err
	}
	defer res.Close()

	localPath, cleanup, err := asset.Localize(res)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	doc, err := gltf.Open(localPath)
	if err != nil {
		return nil, fmt.Errorf("scene: could not parse %s: %w", pathToScene, err)
	}

	sc := New()
	sc.sceneFile = pathToScene
	sc.name = strings.TrimSuffix(filepath.Base(res.RemotePath()), filepath.Ext(res.RemotePath()))
	if err = sc.importDocument(doc); err != nil {
		return nil, fmt.Errorf("scene: could not import %s: %w", pathToScene, err)
	}
	sc.loadTime = time.Since(start)

	logger.Noticef("loaded %s in %d ms: %d meshes, %d instances, %d triangles", sc.name, sc.loadTime.Nanoseconds()/1e6, len(sc.Meshes), len(sc.Instances), sc.stats.Triangles)
	return sc, nil
}

func (sc *Scene) Name() string {
	return sc.name
}

// Get the world space bounds of all instances.
func (sc *Scene) Bounds() Bounds {
	return sc.bounds
}

func (sc *Scene) Stats() Stats {
	return sc.stats
}

// Get the camera placement stored in the scene file, if any.
func (sc *Scene) InitialCamera() (CameraSetup, bool) {
	if sc.camera == nil {
		return CameraSetup{}, false
	}
	return *sc.camera, true
}

// Place a primitive mesh in the world and update the scene bounds and
// statistics.
func (sc *Scene) AddInstance(name string, mesh int, transform types.Mat4) {
	inst := Instance{
		Node:      name,
		Mesh:      mesh,
		Transform: transform,
		Bounds:    sc.Meshes[mesh].Bounds.Transform(transform),
	}
	sc.Instances = append(sc.Instances, inst)
	sc.bounds = sc.bounds.Union(inst.Bounds)
	sc.stats.Instances = len(sc.Instances)
	sc.stats.Meshes = len(sc.Meshes)
	sc.stats.Materials = len(sc.Materials)
	sc.stats.Triangles += len(sc.Meshes[mesh].Indices) / 3
}

// Get the descriptor layout for the scene resources. The layout changes
// with the number of textures in the scene.
func (sc *Scene) Layout() gpu.Layout {
	textures := uint32(sc.textures)
	if textures == 0 {
		textures = 1
	}
	return gpu.Layout{
		Name: "scene",
		Bindings: []gpu.Binding{
			{Slot: CameraBinding, Kind: gpu.UniformBinding, Count: 1},
			{Slot: MaterialBinding, Kind: gpu.StorageBinding, Count: 1},
			{Slot: InstanceBinding, Kind: gpu.StorageBinding, Count: 1},
			{Slot: TextureBinding, Kind: gpu.TextureBinding, Count: textures},
		},
	}
}

func (sc *Scene) importDocument(doc *gltf.Document) error {
	for _, mat := range doc.Materials {
		sc.Materials = append(sc.Materials, importMaterial(mat))
	}

	// Map each glTF mesh to the range of primitive meshes it expands to
	meshPrims := make([][]int, len(doc.Meshes))
	for meshIndex, mesh := range doc.Meshes {
		for primIndex, prim := range mesh.Primitives {
			if prim.Mode != gltf.PrimitiveTriangles {
				logger.Warningf("skipping primitive %d of mesh %q: only triangle lists are supported", primIndex, mesh.Name)
				continue
			}
			pm, err := importPrimitive(doc, prim)
			if err != nil {
				return fmt.Errorf("mesh %q primitive %d: %w", mesh.Name, primIndex, err)
			}
			pm.Name = fmt.Sprintf("%s/%d", mesh.Name, primIndex)
			if pm.Material >= len(sc.Materials) {
				pm.Material = -1
			}
			meshPrims[meshIndex] = append(meshPrims[meshIndex], len(sc.Meshes))
			sc.Meshes = append(sc.Meshes, pm)
		}
	}

	var lights int
	var visit func(nodeIndex int, parent types.Mat4)
	visit = func(nodeIndex int, parent types.Mat4) {
		node := doc.Nodes[nodeIndex]
		world := parent.Mul4(nodeTransform(node))

		if node.Mesh != nil {
			for _, primMesh := range meshPrims[int(*node.Mesh)] {
				sc.Instances = append(sc.Instances, Instance{
					Node:      node.Name,
					Mesh:      primMesh,
					Transform: world,
					Bounds:    sc.Meshes[primMesh].Bounds.Transform(world),
				})
			}
		}
		if node.Camera != nil && sc.camera == nil {
			sc.camera = importCamera(doc.Cameras[int(*node.Camera)], world)
		}
		if _, ok := node.Extensions[lightsExtension]; ok {
			lights++
		}
		for _, child := range node.Children {
			visit(int(child), world)
		}
	}
	for _, root := range rootNodes(doc) {
		visit(root, types.Ident4())
	}

	sc.bounds = EmptyBounds()
	for _, inst := range sc.Instances {
		sc.bounds = sc.bounds.Union(inst.Bounds)
	}

	sc.textures = len(doc.Textures)
	sc.stats = Stats{
		Cameras:   len(doc.Cameras),
		Images:    len(doc.Images),
		Textures:  len(doc.Textures),
		Materials: len(doc.Materials),
		Samplers:  len(doc.Samplers),
		Nodes:     len(doc.Nodes),
		Meshes:    len(sc.Meshes),
		Instances: len(sc.Instances),
		Lights:    lights,
	}
	for _, pm := range sc.Meshes {
		sc.stats.UniqueTriangles += len(pm.Indices) / 3
	}
	for _, inst := range sc.Instances {
		sc.stats.Triangles += len(sc.Meshes[inst.Mesh].Indices) / 3
	}

	return nil
}

// Get the root nodes of the default scene. Documents without scenes use
// every node that is not referenced as a child.
func rootNodes(doc *gltf.Document) []int {
	var roots []int
	if len(doc.Scenes) != 0 {
		sceneIndex := 0
		if doc.Scene != nil {
			sceneIndex = int(*doc.Scene)
		}
		for _, n := range doc.Scenes[sceneIndex].Nodes {
			roots = append(roots, int(n))
		}
		return roots
	}

	isChild := make([]bool, len(doc.Nodes))
	for _, node := range doc.Nodes {
		for _, child := range node.Children {
			isChild[int(child)] = true
		}
	}
	for index := range doc.Nodes {
		if !isChild[index] {
			roots = append(roots, index)
		}
	}
	return roots
}

func importMaterial(mat *gltf.Material) Material {
	out := Material{
		Name:        mat.Name,
		BaseColor:   types.XYZ(1, 1, 1),
		Alpha:       1,
		Metallic:    1,
		Roughness:   1,
		AlphaMask:   mat.AlphaMode == gltf.AlphaMask,
		AlphaCutoff: float32(mat.AlphaCutoffOrDefault()),
	}
	if pbr := mat.PBRMetallicRoughness; pbr != nil {
		baseColor := pbr.BaseColorFactorOrDefault()
		out.BaseColor = types.XYZ(float32(baseColor[0]), float32(baseColor[1]), float32(baseColor[2]))
		out.Alpha = float32(baseColor[3])
		out.Metallic = float32(pbr.MetallicFactorOrDefault())
		out.Roughness = float32(pbr.RoughnessFactorOrDefault())
	}
	for i, v := range mat.EmissiveFactor {
		out.Emissive[i] = float32(v)
	}
	return out
}

func importPrimitive(doc *gltf.Document, prim *gltf.Primitive) (PrimMesh, error) {
	pm := PrimMesh{Material: -1, Bounds: EmptyBounds()}
	if prim.Material != nil {
		pm.Material = int(*prim.Material)
	}

	posIndex, ok := prim.Attributes[gltf.POSITION]
	if !ok {
		return pm, fmt.Errorf("missing %s attribute", gltf.POSITION)
	}
	positions, err := modeler.ReadPosition(doc, doc.Accessors[posIndex], nil)
	if err != nil {
		return pm, err
	}
	pm.Positions = make([]types.Vec3, len(positions))
	for i, p := range positions {
		pm.Positions[i] = types.XYZ(p[0], p[1], p[2])
		pm.Bounds = pm.Bounds.Extend(pm.Positions[i])
	}

	if prim.Indices != nil {
		pm.Indices, err = modeler.ReadIndices(doc, doc.Accessors[*prim.Indices], nil)
		if err != nil {
			return pm, err
		}
	} else {
		pm.Indices = make([]uint32, len(positions))
		for i := range pm.Indices {
			pm.Indices[i] = uint32(i)
		}
	}

	if len(pm.Indices)%3 != 0 {
		return pm, fmt.Errorf("index count %d is not a multiple of 3", len(pm.Indices))
	}
	for _, index := range pm.Indices {
		if int(index) >= len(pm.Positions) {
			return pm, fmt.Errorf("index %d out of range", index)
		}
	}

	return pm, nil
}

// Get the local transform of a node: either its matrix or the composed
// translation * rotation * scale.
func nodeTransform(node *gltf.Node) types.Mat4 {
	var m types.Mat4
	for i, v := range node.MatrixOrDefault() {
		m[i] = float32(v)
	}
	if !m.Equal(types.Ident4()) {
		return m
	}

	var t, s types.Vec3
	for i, v := range node.TranslationOrDefault() {
		t[i] = float32(v)
	}
	for i, v := range node.ScaleOrDefault() {
		s[i] = float32(v)
	}
	r := node.RotationOrDefault()
	q := types.Quat{V: types.XYZ(float32(r[0]), float32(r[1]), float32(r[2])), W: float32(r[3])}

	return types.Translate3D(t).Mul4(q.Normalize().Mat4()).Mul4(types.Scale3D(s))
}

func importCamera(cam *gltf.Camera, world types.Mat4) *CameraSetup {
	setup := &CameraSetup{
		Eye: world.TransformPoint(types.XYZ(0, 0, 0)),
		Up:  world.TransformDir(types.XYZ(0, 1, 0)).Normalize(),
		FOV: 45,
	}
	setup.Center = setup.Eye.Add(world.TransformDir(types.XYZ(0, 0, -1)).Normalize())
	if cam.Perspective != nil {
		setup.FOV = float32(float64(cam.Perspective.Yfov) * 180 / math.Pi)
	}
	return setup
}
