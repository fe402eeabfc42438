package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/akmonengine/impulse"
	"github.com/akmonengine/impulse/actor"
	"github.com/akmonengine/impulse/config"
	"github.com/akmonengine/impulse/constraint"
	"github.com/go-gl/mathgl/mgl64"
)

// Scene - a ground plane, a tumbling cube, a bouncing sphere and a door on a hinge
type Scene struct {
	World  *impulse.World
	Ground *actor.RigidBody
	Cube   *actor.RigidBody
	Sphere *actor.RigidBody
	Door   *actor.RigidBody
}

// SetupScene builds the bodies and their joints
func SetupScene(cfg config.Config, logger impulse.Logger) (*Scene, error) {
	world, err := impulse.NewWorld(cfg, impulse.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	// Ground plane at y=0
	ground := actor.NewRigidBody(actor.NewTransform(), &actor.Plane{Normal: mgl64.Vec3{0, 1, 0}}, actor.BodyTypeStatic, 0)
	ground.Name = "ground"
	world.AddBody(ground)

	cube := actor.NewRigidBody(
		actor.NewTransformAt(mgl64.Vec3{-5, 5, -5}, mgl64.QuatRotate(0.3, mgl64.Vec3{0, 0, 1})),
		&actor.Box{HalfExtents: mgl64.Vec3{1.5, 1.5, 1.5}},
		actor.BodyTypeDynamic, 1,
	)
	cube.Name = "cube"
	cube.Material.Friction = 0.6
	world.AddBody(cube)

	sphere := actor.NewRigidBody(actor.NewTransformAt(mgl64.Vec3{3, 4, 0}, mgl64.QuatIdent()), &actor.Sphere{Radius: 0.5}, actor.BodyTypeDynamic, 1)
	sphere.Name = "sphere"
	sphere.Material.Restitution = 0.8
	world.AddBody(sphere)

	// a door hanging on a vertical hinge, opening a quarter turn at most
	door := actor.NewRigidBody(
		actor.NewTransformAt(mgl64.Vec3{0.5, 3, 6}, mgl64.QuatIdent()),
		&actor.Box{HalfExtents: mgl64.Vec3{0.5, 1, 0.05}},
		actor.BodyTypeDynamic, 1,
	)
	door.Name = "door"
	door.Velocity = mgl64.Vec3{0, 0, 2}
	world.AddBody(door)
	world.AddConstraint(constraint.NewHingeConstraint(door, nil, mgl64.Vec3{0, 3, 6}, mgl64.Vec3{0, 1, 0}, 0, mgl64.DegToRad(90)))

	world.Events.Subscribe(impulse.COLLISION_ENTER, func(e impulse.Event) {
		event := e.(impulse.CollisionEnterEvent)
		logger.Infof("%s touches %s", event.BodyA.Name, event.BodyB.Name)
	})
	world.Events.Subscribe(impulse.COLLISION_EXIT, func(e impulse.Event) {
		event := e.(impulse.CollisionExitEvent)
		logger.Infof("%s leaves %s", event.BodyA.Name, event.BodyB.Name)
	})

	return &Scene{World: world, Ground: ground, Cube: cube, Sphere: sphere, Door: door}, nil
}

func main() {
	configPath := flag.String("config", "", "YAML tolerances, the defaults when empty")
	steps := flag.Int("steps", 240, "number of steps to simulate")
	debug := flag.Bool("debug", false, "log the solver and narrowphase details")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			log.Fatal(err)
		}
	}

	logger := impulse.NewDefaultLogger("scene", *debug)
	scene, err := SetupScene(cfg, logger)
	if err != nil {
		log.Fatal(err)
	}

	const dt float64 = 1.0 / 60.0
	for step := range *steps {
		scene.World.Step(dt)

		if step%30 == 29 {
			fmt.Printf("--- step %d, %d contacts ---\n", step+1, scene.World.ContactCount())
			for _, body := range []*actor.RigidBody{scene.Cube, scene.Sphere, scene.Door} {
				fmt.Printf("  %-6s position %v velocity %.3f\n", body.Name, body.Transform.Position, body.Velocity.Len())
			}
		}
	}

	if hit, ok := scene.World.RayCast(mgl64.Vec3{-5, 10, -5}, mgl64.Vec3{-5, -10, -5}); ok {
		fmt.Printf("ray from above hits %s at %v\n", hit.Body.Name, hit.Point)
	}
}
