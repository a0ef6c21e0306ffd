// Package prompt builds the instruction text sent to the vision oracle.
// Three mutually exclusive modes exist for both grounding and assessment:
// sub-region extraction, full region with auxiliary elements (caption,
// legend, notes), and main content only. The mode is a pure function of the
// region query and never changes between rounds.
package prompt

import "fmt"

// Grounding returns the localization instructions for a named region.
func Grounding(name string, isSubregion, includeAuxiliary bool) string {
	switch {
	case isSubregion:
		return fmt.Sprintf(`Please locate "%[1]s" in this image and return ONLY its bounding box coordinates.

IMPORTANT RULES for sub-figure extraction:
1. "%[1]s" is a SUB-FIGURE (part of a larger figure)
2. You must locate ONLY the specific sub-figure "%[1]s", NOT the entire figure
3. Include the sub-figure's own label if visible (like "(a)" or "a)")
4. Do NOT include the main figure's title, caption, or other sub-figures
5. The bounding box should tightly fit ONLY the sub-figure content

Return the coordinates in this exact JSON format:
{"bbox": [x1, y1, x2, y2], "found": true}

Coordinates are in 0-1000 scale (will be normalized later).

If "%[1]s" is not found, return:
{"bbox": null, "found": false}

Return ONLY the JSON, no other text. Do NOT use <think> tags.`, name)

	case includeAuxiliary:
		return fmt.Sprintf(`Please locate "%[1]s" in this image and return its bounding box coordinates.

## CRITICAL: MUST INCLUDE THE COMPLETE CAPTION!

The most common error is missing the caption text. You MUST:

1. **FIND THE CAPTION FIRST**:
   - For FIGURES: Look BELOW the diagram for text starting with "%[1]s:" or "%[1]s |"
   - For TABLES: Look ABOVE the table for the caption
   - Captions often span 2-3 lines - include ALL lines!
   - The caption typically ends before the next section heading or paragraph

2. **THEN INCLUDE**:
   - The main diagram/chart/table content
   - Legends and color keys
   - Axis labels and tick marks
   - Sub-figure labels (a), (b), (c) if composite
   - Notes and footnotes belonging to this figure

3. **BOUNDING BOX TIPS**:
   - Better to include slightly more than to cut off caption text!
   - Add 20-30 units of margin below captions to ensure full text inclusion
   - Captions need approximately 40-60 units of vertical space per line

Return the coordinates in this exact JSON format:
{"bbox": [x1, y1, x2, y2], "found": true}

Coordinates are in 0-1000 scale.

If "%[1]s" is not found, return:
{"bbox": null, "found": false}

Return ONLY the JSON, no other text. Do NOT use <think> tags.`, name)

	default:
		return fmt.Sprintf(`Please locate "%[1]s" in this image and return its bounding box coordinates.

IMPORTANT: Extract ONLY the MAIN CONTENT, excluding extras:

INCLUDE:
- The actual chart, diagram, image, or table data
- Axis labels and tick marks if part of the visual
- Sub-figure panels (a), (b), etc. if this is a composite figure

DO NOT INCLUDE:
- Figure/Table number and caption text (e.g., "Figure 1: ...")
- External legends or color keys
- Footnotes or source attributions
- Any text that describes the figure but is not part of it

Return the coordinates in this exact JSON format:
{"bbox": [x1, y1, x2, y2], "found": true}

Coordinates are in 0-1000 scale.

If "%[1]s" is not found, return:
{"bbox": null, "found": false}

Return ONLY the JSON, no other text. Do NOT use <think> tags.`, name)
	}
}

// Assessment returns the quality-scoring instructions for a candidate box.
// The box is quoted on the 0-1000 grid, matching the oracle's native scale.
func Assessment(name string, isSubregion, includeAuxiliary bool, box [4]int) string {
	switch {
	case isSubregion:
		return fmt.Sprintf(`You are evaluating a SUB-FIGURE extraction. The red rectangle shows the CURRENT extraction boundary.

Target: "%[1]s" (this is a SUB-FIGURE, part of a larger composite figure)
Current bounding box (0-1000 scale): [%[2]d, %[3]d, %[4]d, %[5]d]

## EVALUATION TASK

Carefully examine the image and answer:
1. Does the red rectangle capture ONLY the sub-figure "%[1]s"?
2. Is the sub-figure label (like "(a)") included?
3. Are other sub-figures or the main caption EXCLUDED?

## SCORING (be strict)
- 10: Perfect - only this sub-figure, properly bounded
- 8-9: Good - minor boundary issues
- 5-7: Includes parts of other sub-figures or misses content
- 1-4: Wrong sub-figure or major errors

Return JSON:
{
    "quality_score": <1-10>,
    "issues": ["specific issues"],
    "needs_refinement": true/false,
    "refined_bbox": [x1, y1, x2, y2] or null
}

Do NOT use <think> tags. Return ONLY JSON.`, name, box[0], box[1], box[2], box[3])

	case includeAuxiliary:
		return fmt.Sprintf(`Evaluate this figure/table extraction. The RED RECTANGLE shows the current boundary.

Target: %[1]s
Current bbox: [%[2]d, %[3]d, %[4]d, %[5]d]

## YOUR TASK

1. FIND THE CAPTION: Look for "%[1]s:" or "%[1]s." text
   - For Figure: typically BELOW the diagram
   - For Table: typically ABOVE the table

2. CHECK: Is the ENTIRE caption text (may be multi-line) inside the red rectangle?

3. CHECK: Is the main figure/table content fully included?

4. CHECK: Are legends, axis labels, notes included?

5. CHECK: Does it accidentally include OTHER figures/tables or unrelated text?

## SCORING (0-10)
- 10: Perfect! All content + full caption + no extras
- 8-9: Minor issues (slight boundary imprecision)
- 6-7: Caption partially cut off OR missing legend
- 1-5: Major problems

## RESPONSE FORMAT
Return JSON only:
{
    "quality_score": <1-10>,
    "caption_status": "fully_included" | "partially_cut" | "missing" | "cannot_find_caption",
    "caption_text_visible": "<write the caption text you can see inside the red box, or 'none'>",
    "issues": ["list specific issues"],
    "needs_refinement": true/false,
    "refined_bbox": [x1, y1, x2, y2] or null
}

NOTE: If caption_status is "partially_cut", extend y2 by 40-60 units. If you see significant whitespace below the content but caption is still "partially_cut", reconsider - maybe the caption IS fully included.

Do NOT use <think> tags. ONLY return JSON.`, name, box[0], box[1], box[2], box[3])

	default:
		return fmt.Sprintf(`You are evaluating a figure/table extraction (MAIN CONTENT ONLY, no caption). The red rectangle shows the CURRENT extraction boundary.

Target: "%[1]s" (extracting main visual content only)
Current bounding box (0-1000 scale): [%[2]d, %[3]d, %[4]d, %[5]d]

## EVALUATION TASK

Check that the boundary captures:
- The main diagram/chart/table DATA
- Axis labels if part of the visual
- Internal legends if embedded in the figure

Check that it EXCLUDES:
- The caption text (e.g., "Figure 1: ...")
- External notes and footnotes

## SCORING
- 10: Perfect extraction of main content only
- 8-9: Minor issues
- 5-7: Includes caption or misses content
- 1-4: Major errors

Return JSON:
{
    "quality_score": <1-10>,
    "issues": ["specific issues"],
    "needs_refinement": true/false,
    "refined_bbox": [x1, y1, x2, y2] or null
}

Do NOT use <think> tags. Return ONLY JSON.`, name, box[0], box[1], box[2], box[3])
	}
}
