package meshbatch

import "errors"

// Errors returned by buffers, views, meshes and the renderer.
// Callers match them with errors.Is; returned errors wrap them with context.
var (
	// ErrAllocation is returned when backing storage for a buffer cannot be
	// obtained: negative or oversized element counts, byte-size overflow, or
	// a failed device allocation.
	ErrAllocation = errors.New("meshbatch: buffer allocation failed")

	// ErrAttributeCountMismatch is returned when a payload's value count is
	// not consistent with the vertex count and the view's component count.
	ErrAttributeCountMismatch = errors.New("meshbatch: attribute value count mismatch")

	// ErrOutOfBoundsWrite is returned when a strided write would touch
	// elements past the end of the target buffer. Nothing is written.
	ErrOutOfBoundsWrite = errors.New("meshbatch: write exceeds buffer size")

	// ErrEmptyBatch is returned by Render when no meshes were added.
	ErrEmptyBatch = errors.New("meshbatch: no meshes to render")

	// ErrElementTypeMismatch is returned when a payload's element type
	// differs from the element type of the view it is written through.
	ErrElementTypeMismatch = errors.New("meshbatch: element type mismatch")

	// ErrInvalidView is returned for views with non-positive components,
	// negative stride or offset, or a stride smaller than the component count.
	ErrInvalidView = errors.New("meshbatch: invalid attribute view")

	// ErrBufferDestroyed is returned for operations on a destroyed buffer.
	ErrBufferDestroyed = errors.New("meshbatch: buffer destroyed")

	// ErrRenderInProgress is returned when Render is re-entered.
	ErrRenderInProgress = errors.New("meshbatch: render already in progress")

	// ErrNilDevice is returned when a GPU operation needs a device or queue
	// that was not provided.
	ErrNilDevice = errors.New("meshbatch: nil device")

	// ErrUnknownAttribute is returned when a named attribute cannot be
	// resolved against the attribute source.
	ErrUnknownAttribute = errors.New("meshbatch: unknown attribute")

	// ErrUnsupportedFormat is returned when an element type and component
	// count have no matching vertex format.
	ErrUnsupportedFormat = errors.New("meshbatch: unsupported vertex format")

	// ErrTextureNotFound is returned when a texture id is not registered in
	// a TextureSet.
	ErrTextureNotFound = errors.New("meshbatch: texture not found")
)
