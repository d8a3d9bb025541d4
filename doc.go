// Package refract renders scenes containing a screen space glass object.
//
// Every frame runs two passes over the same scene. The capture pass hides the
// glass node and renders everything else into an offscreen target. The
// composite pass shows the glass node again and renders to the visible
// surface, where the glass shader samples the captured image at offsets
// given by refracting the view ray with a separate index of refraction per
// color channel.
//
// A typical program builds the default scene with Build and drives the
// Pipeline from a Scheduler:
//
//	setup, err := refract.Build(ctx, refract.DefaultConfig(), nil)
//	if setup == nil {
//		return err
//	} else if err != nil {
//		log.Println("rendering without glass:", err)
//	}
//	defer setup.Close()
//	err = setup.Pipeline.Run(ctx, refract.NewTicker(60))
package refract
