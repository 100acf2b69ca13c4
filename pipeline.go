// Package scenecore assembles the Geometry Store, Meshlet Builder, Mesh /
// Material / Texture / Light registries, Acceleration-Structure Manager,
// Draw-Command Indexer, and Scene Assembly Pass into the single Pipeline
// type external callers drive.
package scenecore

import (
	"github.com/gekko3d/scenecore/internal/accel"
	"github.com/gekko3d/scenecore/internal/frame"
	"github.com/gekko3d/scenecore/internal/geometry"
	"github.com/gekko3d/scenecore/internal/gpudevice"
	"github.com/gekko3d/scenecore/internal/id"
	"github.com/gekko3d/scenecore/internal/jobpool"
	"github.com/gekko3d/scenecore/internal/scene"
	"github.com/go-gl/mathgl/mgl32"
)

// Pipeline is the External Interface of spec §6: one long-lived object
// wiring every module together.
type Pipeline struct {
	cfg Config

	geometry  *geometry.Store
	meshes    *scene.MeshRegistry
	materials *scene.MaterialRegistry
	textures  *scene.TextureRegistry
	lights    *scene.LightRegistry
	draws     *scene.DrawIndexer
	instances *scene.InstanceRegistry
	accelMgr  *accel.Manager
	consts    *frame.ConstantData
	assembler *frame.Assembler
	pool      *jobpool.Pool
}

// New wires up every module against cfg. The returned Pipeline owns a
// worker pool that must be released with Close.
func New(cfg Config) *Pipeline {
	cfg = cfg.withDefaults()

	store := geometry.NewStore()
	meshes := scene.NewMeshRegistry(store, cfg.Logger)
	materials := scene.NewMaterialRegistry()
	consts := frame.NewConstantData()
	textures := scene.NewTextureRegistry(consts)
	lights := scene.NewLightRegistry(consts)
	draws := scene.NewDrawIndexer()
	instances := scene.NewInstanceRegistry()
	accelMgr := accel.NewManager(meshes.BVHArena())
	assembler := frame.NewAssembler(meshes, instances, accelMgr, store, consts)

	return &Pipeline{
		cfg:       cfg,
		geometry:  store,
		meshes:    meshes,
		materials: materials,
		textures:  textures,
		lights:    lights,
		draws:     draws,
		instances: instances,
		accelMgr:  accelMgr,
		consts:    consts,
		assembler: assembler,
		pool:      jobpool.New(cfg.Workers),
	}
}

// Close releases the worker pool. Safe to call once, after which the
// Pipeline must not be used.
func (p *Pipeline) Close() { p.pool.Close() }

// AddMesh runs the Meshlet Builder over data and inserts the resulting mesh
// under entity, rebuilding the draw index and TLAS to include it.
func (p *Pipeline) AddMesh(entity id.ID, data scene.MeshData) (uint32, error) {
	idx, err := p.meshes.AddMesh(entity, data)
	if err != nil {
		// The Meshlet Builder's only failures (empty/degenerate geometry)
		// are both caller-supplied-bad-input cases.
		return 0, newError(KindValidation, "AddMesh", err)
	}
	p.draws.Rebuild(p.meshes, p.materials)
	p.instances.Rebuild(p.meshes)
	p.accelMgr.Rebuild(p.meshes.Snapshot())
	return idx, nil
}

// AddMeshesConcurrent runs AddMesh for every entry, parallelizing the
// (pure, lock-free) Meshlet Builder stage across the Pipeline's worker pool
// before serializing registry insertion — see MeshRegistry.AddMesh.
func (p *Pipeline) AddMeshesConcurrent(entities []id.ID, datas []scene.MeshData) ([]uint32, []error) {
	type item struct {
		entity id.ID
		data   scene.MeshData
	}
	items := make([]item, len(entities))
	for i := range entities {
		items[i] = item{entities[i], datas[i]}
	}

	type result struct {
		idx uint32
		err error
	}
	results := jobpool.RunOrdered(p.pool, items, func(it item) result {
		idx, err := p.meshes.AddMesh(it.entity, it.data)
		return result{idx, err}
	})

	idxs := make([]uint32, len(results))
	errs := make([]error, len(results))
	for i, r := range results {
		idxs[i] = r.idx
		if r.err != nil {
			errs[i] = newError(KindValidation, "AddMesh", r.err)
		}
	}
	p.draws.Rebuild(p.meshes, p.materials)
	p.instances.Rebuild(p.meshes)
	p.accelMgr.Rebuild(p.meshes.Snapshot())
	return idxs, errs
}

// ChangeMesh applies a transform/material edit without rebuilding geometry.
func (p *Pipeline) ChangeMesh(entity id.ID, update scene.MeshUpdate) error {
	transformChanged, ok := p.meshes.ChangeMesh(entity, update)
	if !ok {
		p.cfg.Logger.Warnf("ChangeMesh: unknown mesh id %s", entity)
		return nil
	}
	if update.Material != nil || update.MaterialIndex != nil {
		p.draws.Rebuild(p.meshes, p.materials)
	}
	if transformChanged {
		p.instances.Rebuild(p.meshes)
		p.accelMgr.Rebuild(p.meshes.Snapshot())
	}
	return nil
}

// RemoveMesh frees a mesh's resources. Removing an unknown id is a silent
// no-op (spec §7).
func (p *Pipeline) RemoveMesh(entity id.ID) error {
	if !p.meshes.RemoveMesh(entity) {
		return nil
	}
	p.draws.Rebuild(p.meshes, p.materials)
	p.instances.Rebuild(p.meshes)
	p.accelMgr.Rebuild(p.meshes.Snapshot())
	return nil
}

// AddMaterial inserts a new material and returns its dense index.
func (p *Pipeline) AddMaterial(entity id.ID, data scene.MaterialData) uint32 {
	return p.materials.Add(entity, data)
}

// UpdateMaterial repacks an existing material and, since alpha mode may
// have moved the mesh between draw buckets, rebuilds the draw index.
func (p *Pipeline) UpdateMaterial(entity id.ID, data scene.MaterialData) error {
	if !p.materials.Update(entity, data) {
		p.cfg.Logger.Warnf("UpdateMaterial: unknown material id %s", entity)
		return nil
	}
	p.draws.Rebuild(p.meshes, p.materials)
	return nil
}

func (p *Pipeline) RemoveMaterial(entity id.ID) error {
	if !p.materials.Remove(entity) {
		p.cfg.Logger.Warnf("RemoveMaterial: unknown material id %s", entity)
	}
	return nil
}

func (p *Pipeline) AddTexture(entity id.ID, info scene.TextureInfo, lut scene.LUTKind) uint32 {
	return p.textures.Add(entity, info, lut)
}

func (p *Pipeline) RemoveTexture(entity id.ID) error {
	if !p.textures.Remove(entity) {
		p.cfg.Logger.Warnf("RemoveTexture: unknown texture id %s", entity)
	}
	return nil
}

func (p *Pipeline) AddLight(entity id.ID, data scene.LightData) uint32 {
	return p.lights.Add(entity, data)
}

func (p *Pipeline) UpdateLight(entity id.ID, data scene.LightData) error {
	if !p.lights.Update(entity, data) {
		p.cfg.Logger.Warnf("UpdateLight: unknown light id %s", entity)
	}
	return nil
}

func (p *Pipeline) RemoveLight(entity id.ID) error {
	if !p.lights.Remove(entity) {
		p.cfg.Logger.Warnf("RemoveLight: unknown light id %s", entity)
	}
	return nil
}

// UpdateConstantData implements the §6 external input
// `update_constant_data(view, proj, near, far, screen_size, debug_coord)`:
// it stamps the camera-facing fields of the Constant-Data Block ahead of
// the next AssembleFrame. AssembleFrame itself recomputes the mesh count,
// tlas_start_index, buffer offsets and frame index; the light count and LUT
// slots are kept current by the light and texture registries.
func (p *Pipeline) UpdateConstantData(view, proj mgl32.Mat4, near, far float32, screenSize, debugCoord [2]float32) {
	p.consts.SetCamera([16]float32(view), [16]float32(proj), near, far, screenSize, debugCoord)
}

// SetDebugFlags toggles the §6 Constant-Data debug/feature flag bitset.
func (p *Pipeline) SetDebugFlags(flags frame.DebugFlags) { p.consts.Flags = flags }

// SetNumBounces sets the Constant-Data Block's path-trace bounce budget.
func (p *Pipeline) SetNumBounces(n uint32) { p.consts.NumBounces = n }

// SetForcedLODLevel pins every mesh's rendered LOD for debugging; a
// negative value restores the renderer's own LOD selection.
func (p *Pipeline) SetForcedLODLevel(level int32) { p.consts.ForcedLODLevel = level }

// AssembleFrame runs the Scene Assembly Pass: it must be called once per
// frame, after every add/change/remove call for that frame has been
// applied, and before the renderer reads the Constant-Data Block.
func (p *Pipeline) AssembleFrame() frame.Offsets {
	p.materials.ClearDirty()
	p.textures.ClearDirty()
	p.lights.ClearDirty()
	p.meshes.UploadMeshlets(p.cfg.Device)
	p.draws.Upload(p.cfg.Device)
	p.instances.Upload(p.cfg.Device)
	p.meshes.Upload(p.cfg.Device)
	offsets := p.assembler.Assemble(p.cfg.Device)
	p.meshes.ClearDirty()
	return offsets
}

// GeometryBuffer, SceneBuffer, and ConstantBuffer are the renderer-facing
// handles spec §6 names as the Scene Assembly Pass's outputs. DrawBucket
// returns the indirect draw commands for one flag-set bucket, and
// TLASStartIndex the current tlas_start_index for debug draw/assertions.
func (p *Pipeline) GeometryBuffer() *gpudevice.Buffer { return p.assembler.GeometryBuffer() }
func (p *Pipeline) SceneBuffer() *gpudevice.Buffer    { return p.assembler.SceneBuffer() }
func (p *Pipeline) ConstantBuffer() *gpudevice.Buffer { return p.assembler.ConstantBuffer() }

func (p *Pipeline) DrawBucket(bucket scene.DrawBucket) []scene.IndirectDraw { return p.draws.Bucket(bucket) }

func (p *Pipeline) TLASStartIndex() int32 { return p.accelMgr.StartIndex() }
