package component

import (
	"errors"
	"fmt"

	"github.com/zeusync/hive/internal/core/hivenodes"
)

// Delete removes the component from the scene. Child components are moved
// under the component layer first, then the rig, deform and guide layers are
// torn down in that order before the container, the root and the meta node go.
func (c *Component) Delete() error {
	if err := c.requireExists(); err != nil {
		return err
	}
	for _, child := range c.Children() {
		if err := child.RemoveParent(); err != nil {
			return fmt.Errorf("release child %s: %w", child.Token(), err)
		}
	}

	if err := c.DeleteRig(); err != nil {
		return fmt.Errorf("delete rig: %w", err)
	}
	if err := c.DeleteDeform(); err != nil {
		return fmt.Errorf("delete deform: %w", err)
	}
	if err := c.DeleteGuide(); err != nil {
		return fmt.Errorf("delete guide: %w", err)
	}

	g := c.graph
	var errs []error
	for _, l := range c.layerList() {
		errs = append(errs, l.Delete())
	}
	if container := c.Container(); container != "" {
		errs = append(errs, g.SetBlackBox(container, false), g.DeleteNodes(container))
	}
	if root := c.RootTransform(); root != "" {
		hivenodes.UnlockTree(g, root)
		errs = append(errs, g.DeleteNodes(root))
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	if err := g.DeleteNodes(c.meta); err != nil {
		return err
	}
	c.meta = ""
	c.fingerprints = nil
	c.logger.Debug("component deleted")
	return nil
}
